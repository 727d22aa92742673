package service

import "context"

type clientCtxKey struct{}

// ClientInfo identifies the device behind a request for the audit trail.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// WithClientInfo attaches request metadata that audit entries record.
func WithClientInfo(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientCtxKey{}, ClientInfo{IP: ip, UserAgent: userAgent})
}

// ClientInfoFrom returns the metadata set by WithClientInfo, or zero values.
func ClientInfoFrom(ctx context.Context) ClientInfo {
	ci, _ := ctx.Value(clientCtxKey{}).(ClientInfo)
	return ci
}
