// Package scheduler assigns subjects to weekly (day, time, teacher, room) slots from faculty and
// student preferences and checks finished timetables for double-bookings.
package scheduler

import "go.uber.org/zap"

// Option customises an Engine.
type Option func(*Engine)

// WithIDGenerator overrides entry id generation.
func WithIDGenerator(ids IDGenerator) Option {
	return func(e *Engine) { e.ids = ids }
}

// WithGrid overrides the weekly day and slot labels.
func WithGrid(days, slots []string) Option {
	return func(e *Engine) {
		if len(days) > 0 {
			e.days = days
		}
		if len(slots) > 0 {
			e.slots = slots
		}
	}
}

// WithLogger attaches a logger for placement diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// Engine runs generation passes. It holds no state between calls and is safe for concurrent use
// as long as the configured IDGenerator is.
type Engine struct {
	days   []string
	slots  []string
	ids    IDGenerator
	logger *zap.Logger
}

// New constructs an Engine with the fixed weekly grid and UUID ids unless overridden.
func New(opts ...Option) *Engine {
	e := &Engine{days: Weekdays, slots: TimeSlots, ids: UUIDGenerator{}, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Days returns the configured weekday labels.
func (e *Engine) Days() []string { return e.days }

// Slots returns the configured time slot labels.
func (e *Engine) Slots() []string { return e.slots }

// Generate builds a fresh timetable from the preference mappings.
func (e *Engine) Generate(prefs Preferences) Result {
	return e.GenerateOnto(nil, prefs)
}

// GenerateOnto schedules on top of already committed entries. Seed entries are returned first.
func (e *Engine) GenerateOnto(seed []Entry, prefs Preferences) Result {
	order := PriorityOrder(prefs)
	assigner := NewAssigner(e.days, e.slots, e.ids, e.logger)
	entries, warnings := assigner.Assign(order, prefs, seed)
	return Result{Entries: entries, Warnings: warnings}
}

// Validate reports teacher and room conflicts among entries.
func (e *Engine) Validate(entries []Entry) []string {
	return Validate(entries)
}
