package bugsnag_notifier

import (
	"encoding/json"
	"sort"
)

// PayloadVersion is the event schema version sent with every payload
const PayloadVersion = "4.0"

const (
	fieldMetaData = "metaData"
	fieldUser     = "user"
)

// NotifierInfo identifies this library in the payload envelope
type NotifierInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	URL     string `json:"url"`
}

var notifierInfo = NotifierInfo{
	Name:    "RoadRunner Bugsnag Notifier",
	Version: "1.0.0",
	URL:     "https://github.com/your-org/roadrunner-bugsnag-notifier",
}

type envelope struct {
	APIKey   string            `json:"apiKey"`
	Notifier NotifierInfo      `json:"notifier"`
	Events   []json.RawMessage `json:"events"`
}

type wireSeverityReason struct {
	Type string `json:"type"`
}

type wireException struct {
	ErrorClass string  `json:"errorClass"`
	Message    string  `json:"message"`
	Stacktrace []Frame `json:"stacktrace"`
}

type wireEvent struct {
	PayloadVersion string              `json:"payloadVersion"`
	Severity       Severity            `json:"severity"`
	SeverityReason *wireSeverityReason `json:"severityReason,omitempty"`
	Unhandled      bool                `json:"unhandled"`
	Context        string              `json:"context,omitempty"`
	Exceptions     []wireException     `json:"exceptions"`
	App            map[string]any      `json:"app,omitempty"`
	Device         map[string]any      `json:"device,omitempty"`
	MetaData       json.RawMessage     `json:"metaData,omitempty"`
	User           json.RawMessage     `json:"user,omitempty"`
}

// batchEvent is the serialization copy of one queued report
type batchEvent struct {
	report  *Report
	event   wireEvent
	encoded []byte
}

func newBatchEvent(report *Report) (*batchEvent, error) {
	stacktrace := report.Stacktrace
	if stacktrace == nil {
		stacktrace = []Frame{}
	}

	ev := &batchEvent{
		report: report,
		event: wireEvent{
			PayloadVersion: PayloadVersion,
			Severity:       report.Severity,
			Unhandled:      report.Unhandled,
			Context:        report.Context,
			Exceptions: []wireException{{
				ErrorClass: report.ErrorClass,
				Message:    report.Message,
				Stacktrace: stacktrace,
			}},
			App:    report.App,
			Device: report.Device,
		},
	}
	if report.SeverityReason != "" {
		ev.event.SeverityReason = &wireSeverityReason{Type: report.SeverityReason}
	}

	// an optional field that cannot be serialized is left out instead of failing the report
	metaData := report.MetaData
	if metaData == nil {
		metaData = map[string]map[string]any{}
	}
	if raw, err := json.Marshal(metaData); err == nil {
		ev.event.MetaData = raw
	}

	user := report.User
	if user == nil {
		user = map[string]any{}
	}
	if raw, err := json.Marshal(user); err == nil {
		ev.event.User = raw
	}

	if err := ev.encode(); err != nil {
		return nil, err
	}
	return ev, nil
}

func (ev *batchEvent) encode() error {
	encoded, err := json.Marshal(ev.event)
	if err != nil {
		return err
	}
	ev.encoded = encoded
	return nil
}

// drop removes an optional field and reports whether anything was removed
func (ev *batchEvent) drop(field string) bool {
	switch field {
	case fieldMetaData:
		if ev.event.MetaData == nil {
			return false
		}
		ev.event.MetaData = nil
	case fieldUser:
		if ev.event.User == nil {
			return false
		}
		ev.event.User = nil
	default:
		return false
	}

	// re-encoding only shrinks an event that already encoded once
	_ = ev.encode()
	return true
}

// batch is a size-bounded payload under construction
type batch struct {
	apiKey   string
	maxSize  int
	overhead int
	events   []*batchEvent

	droppedFields  map[string]int
	droppedReports int
	// reports whose mandatory fields could not be encoded
	unencodable int
}

func newBatch(apiKey string, maxSize int, reports []*Report) *batch {
	b := &batch{
		apiKey:        apiKey,
		maxSize:       maxSize,
		events:        make([]*batchEvent, 0, len(reports)),
		droppedFields: make(map[string]int),
	}

	empty, _ := json.Marshal(envelope{APIKey: apiKey, Notifier: notifierInfo, Events: []json.RawMessage{}})
	b.overhead = len(empty)

	for _, report := range reports {
		ev, err := newBatchEvent(report)
		if err != nil {
			b.unencodable++
			continue
		}
		b.events = append(b.events, ev)
	}

	return b
}

// size returns the exact length of the encoded envelope
func (b *batch) size() int {
	size := b.overhead
	for i, ev := range b.events {
		if i > 0 {
			size++
		}
		size += len(ev.encoded)
	}
	return size
}

func (b *batch) fits() bool {
	return b.size() <= b.maxSize
}

func (b *batch) degraded() bool {
	return b.droppedReports > 0 || len(b.droppedFields) > 0
}

// bySize returns the events ordered from largest to smallest, ties in queue order
func (b *batch) bySize() []*batchEvent {
	ordered := make([]*batchEvent, len(b.events))
	copy(ordered, b.events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].encoded) > len(ordered[j].encoded)
	})
	return ordered
}

func (b *batch) stripField(field string) bool {
	for _, ev := range b.bySize() {
		if b.fits() {
			return true
		}
		if ev.drop(field) {
			b.droppedFields[field]++
		}
	}
	return b.fits()
}

// stripMetaData drops metaData from the largest events until the batch fits
func (b *batch) stripMetaData() bool {
	return b.stripField(fieldMetaData)
}

// stripUser drops user from the largest events until the batch fits
func (b *batch) stripUser() bool {
	return b.stripField(fieldUser)
}

// dropOversized removes events that cannot fit into a payload on their own
func (b *batch) dropOversized() bool {
	kept := make([]*batchEvent, 0, len(b.events))
	for _, ev := range b.events {
		if b.overhead+len(ev.encoded) > b.maxSize {
			b.droppedReports++
			continue
		}
		kept = append(kept, ev)
	}
	b.events = kept
	return b.fits()
}

// dropLargest removes the largest events until the rest fit together
func (b *batch) dropLargest() bool {
	for !b.fits() && len(b.events) > 0 {
		largest := b.bySize()[0]
		kept := make([]*batchEvent, 0, len(b.events)-1)
		for _, ev := range b.events {
			if ev != largest {
				kept = append(kept, ev)
			}
		}
		b.events = kept
		b.droppedReports++
	}
	return b.fits()
}

// degrade runs the degradation stages in order until the batch fits
func (b *batch) degrade() {
	stages := []func() bool{
		b.stripMetaData,
		b.stripUser,
		b.dropOversized,
		b.dropLargest,
	}
	for _, stage := range stages {
		if b.fits() || stage() {
			return
		}
	}
}

// encode returns the payload body in queue order
func (b *batch) encode() ([]byte, error) {
	events := make([]json.RawMessage, len(b.events))
	for i, ev := range b.events {
		events[i] = ev.encoded
	}
	return json.Marshal(envelope{
		APIKey:   b.apiKey,
		Notifier: notifierInfo,
		Events:   events,
	})
}
