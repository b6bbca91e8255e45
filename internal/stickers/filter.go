package stickers

import "strings"

type FilterOptions struct {
	Tags      []string
	FreeWords string
	// Source is "builtin", "custom" or "" for both.
	Source string
}

func containsAny(hay []string, needles []string) bool {
	for _, n := range needles {
		for _, h := range hay {
			if strings.Contains(strings.ToLower(h), strings.ToLower(n)) {
				return true
			}
		}
	}
	return false
}

func Filter(stickers []Sticker, opt FilterOptions) []Sticker {
	out := []Sticker{}
	for _, s := range stickers {
		if opt.Source == "builtin" && s.Custom {
			continue
		}
		if opt.Source == "custom" && !s.Custom {
			continue
		}
		if len(opt.Tags) > 0 && !containsAny(s.Tags, opt.Tags) {
			continue
		}
		if opt.FreeWords != "" {
			ok := true
			for _, k := range strings.Fields(opt.FreeWords) {
				k = strings.ToLower(k)
				if !strings.Contains(strings.ToLower(s.Name), k) &&
					!strings.Contains(strings.ToLower(s.ID), k) &&
					!strings.Contains(strings.ToLower(strings.Join(s.Tags, " ")), k) {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// Find returns the sticker with the given id.
func Find(stickers []Sticker, id string) (Sticker, bool) {
	for _, s := range stickers {
		if s.ID == id {
			return s, true
		}
	}
	return Sticker{}, false
}
