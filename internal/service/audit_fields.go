package service

import "sort"

// sensitiveKeys name the action_data fields that are stored encrypted,
// at any nesting depth.
var sensitiveKeys = map[string]struct{}{
	"customer_name":     {},
	"customer_phone":    {},
	"phone_number":      {},
	"vehicle_plate":     {},
	"notes":             {},
	"reason":            {},
	"discrepancy_notes": {},
}

func isSensitive(key string) bool {
	_, ok := sensitiveKeys[key]
	return ok
}

func encryptFields(c FieldCipher, v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if s, ok := val.(string); ok && s != "" && isSensitive(k) {
				enc, err := c.Encrypt(s)
				if err != nil {
					return nil, err
				}
				out[k] = enc
				continue
			}
			nested, err := encryptFields(c, val)
			if err != nil {
				return nil, err
			}
			out[k] = nested
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			nested, err := encryptFields(c, val)
			if err != nil {
				return nil, err
			}
			out[i] = nested
		}
		return out, nil
	default:
		return v, nil
	}
}

// decryptFields opens every sensitive value it can. Values that fail stay
// as stored and their paths are collected in failed.
func decryptFields(c FieldCipher, v any, path string, failed *[]string) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			p := joinPath(path, k)
			if s, ok := val.(string); ok && s != "" && isSensitive(k) {
				plain, err := c.Decrypt(s)
				if err != nil {
					*failed = append(*failed, p)
					out[k] = s
					continue
				}
				out[k] = plain
				continue
			}
			out[k] = decryptFields(c, val, p, failed)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = decryptFields(c, val, path+"[]", failed)
		}
		return out
	default:
		return v
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func sortedUnique(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	sort.Strings(in)
	out := in[:1]
	for _, s := range in[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}
