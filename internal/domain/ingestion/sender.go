package ingestion

import "strings"

// SenderFilter accepts mail only from allow-listed bank domains and their subdomains.
type SenderFilter struct {
	domains []string
}

func NewSenderFilter(domains []string) *SenderFilter {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimLeft(d, "@.")
		if d != "" {
			normalized = append(normalized, d)
		}
	}
	return &SenderFilter{domains: normalized}
}

// Allowed reports whether the From header belongs to an allow-listed domain.
// Headers without an extractable address are rejected.
func (f *SenderFilter) Allowed(from string) bool {
	domain := ExtractDomain(from)
	if domain == "" {
		return false
	}
	for _, allowed := range f.domains {
		if domain == allowed || strings.HasSuffix(domain, "."+allowed) {
			return true
		}
	}
	return false
}

// Domains returns the normalized allow-list.
func (f *SenderFilter) Domains() []string {
	return f.domains
}

// ExtractDomain returns the lower-cased domain of the address in a From header,
// accepting both "Name <addr@domain>" and bare "addr@domain" forms.
func ExtractDomain(from string) string {
	addr := strings.TrimSpace(from)
	if start := strings.LastIndex(addr, "<"); start != -1 {
		end := strings.Index(addr[start:], ">")
		if end == -1 {
			return ""
		}
		addr = addr[start+1 : start+end]
	} else if fields := strings.Fields(addr); len(fields) > 1 {
		addr = ""
		for _, f := range fields {
			if strings.Contains(f, "@") {
				addr = f
			}
		}
	}

	at := strings.LastIndex(addr, "@")
	if at == -1 {
		return ""
	}
	domain := strings.ToLower(strings.TrimSpace(addr[at+1:]))
	domain = strings.Trim(domain, "\"'.;,")
	if strings.ContainsAny(domain, " <>@") {
		return ""
	}
	return domain
}
