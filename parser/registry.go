package parser

import "fmt"

// Registry maps a file format extension to the Parser that handles it.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry builds a registry with the built-in PDF and XLSX parsers
// registered, with no cross-page table continuation checker (Jaccard gating
// alone decides ambiguous cases). PDF is the primary, required ingestion
// format; XLSX is a secondary source for pre-tabulated documents.
func NewRegistry() *Registry {
	return NewRegistryWithContinuation(nil)
}

// NewRegistryWithContinuation builds a registry whose PDFParser consults
// checker to resolve cross-page table continuations that Jaccard similarity
// alone leaves ambiguous.
func NewRegistryWithContinuation(checker TableContinuationChecker) *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	pdf := &PDFParser{Continuation: checker}
	xlsx := &XLSXParser{}

	for _, p := range []Parser{pdf, xlsx} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, fmt.Errorf("no parser for format: %s", format)
	}
	return p, nil
}

func (r *Registry) Register(format string, p Parser) {
	r.parsers[format] = p
}
