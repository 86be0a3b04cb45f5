package discovery

import "gtp/internal/domain"

// StreamingParser feeds lines one at a time into a ListParser and reports
// every descriptor as soon as its line has been seen
type StreamingParser struct {
	parser    *ListParser
	state     ListingState
	onCreated func(domain.TestCaseDescriptor)
}

// NewStreamingParser creates a StreamingParser calling onCreated synchronously per descriptor
func NewStreamingParser(testNameSeparator string, onCreated func(domain.TestCaseDescriptor)) *StreamingParser {
	return &StreamingParser{
		parser:    NewListParser(testNameSeparator),
		onCreated: onCreated,
	}
}

// ReportLine consumes the next line of the listing
func (sp *StreamingParser) ReportLine(line string) {
	var d *domain.TestCaseDescriptor
	sp.state, d = sp.parser.ParseLine(sp.state, line)
	if d != nil && sp.onCreated != nil {
		sp.onCreated(*d)
	}
}
