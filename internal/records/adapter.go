// Package records maps stored documents to session records and back.
package records

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"mahjong/internal/core"
	"mahjong/internal/docstore"
	"mahjong/internal/log"
)

// Stored field names. The layout is shared with every client of the collection.
const (
	FieldDate         = "date"
	FieldType         = "type"
	FieldAmount       = "amount"
	FieldTableFee     = "tableFee"
	FieldStakes       = "stakes"
	FieldCustomStakes = "customStakes"
	FieldFinalStakes  = "finalStakes"
	FieldCreatedAt    = "createdAt"
)

// FormInput is the raw text of the add-record form.
type FormInput struct {
	Date         string `json:"date"`
	Type         string `json:"type"`
	Amount       string `json:"amount"`
	TableFee     string `json:"tableFee"`
	Stakes       string `json:"stakes"`
	CustomStakes string `json:"customStakes"`
}

// DefaultForm is the form preset for a new record on day today.
func DefaultForm(today core.Date) FormInput {
	return FormInput{
		Date:   today.ISO(),
		Type:   string(core.Win),
		Stakes: core.DefaultStake,
	}
}

// Adapter reads and writes records through a document collection.
type Adapter struct {
	coll   docstore.Collection
	ids    *IDGenerator
	now    func() time.Time
	logger *log.Logger
}

type Option func(*Adapter)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

func NewAdapter(coll docstore.Collection, opts ...Option) *Adapter {
	a := &Adapter{
		coll: coll,
		ids:  NewIDGenerator(),
		now:  time.Now,
		logger: log.New(log.Config{
			Level:     slog.LevelInfo,
			Component: log.ComponentRecords,
			Handler:   slog.Default().Handler(),
		}),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// NewRecord validates form and builds the record it describes. No record is
// produced for invalid input.
func NewRecord(form FormInput, id string, now time.Time) (core.Record, error) {
	date, err := core.ParseDate(form.Date)
	if err != nil {
		return core.Record{}, err
	}
	amount, err := core.ParseAmount(form.Amount)
	if err != nil {
		return core.Record{}, err
	}
	fee, err := core.ParseTableFee(form.TableFee)
	if err != nil {
		return core.Record{}, err
	}
	t := core.RecordType(strings.ToLower(strings.TrimSpace(form.Type)))
	if t == "" {
		t = core.Win
	}
	if !t.Valid() {
		return core.Record{}, core.ErrInvalidType
	}
	preset := form.Stakes
	if strings.TrimSpace(preset) == "" {
		preset = core.DefaultStake
	}
	r := core.Record{
		ID:        id,
		Date:      date,
		Type:      t,
		Amount:    amount,
		TableFee:  fee,
		Stake:     core.ResolveStake(preset, form.CustomStakes),
		CreatedAt: now.UTC(),
	}
	return r, r.Validate()
}

// CreateRecord validates form, assigns a fresh id and stores the record.
func (a *Adapter) CreateRecord(ctx context.Context, form FormInput) (core.Record, error) {
	now := a.now()
	r, err := NewRecord(form, a.ids.Next(now), now)
	if err != nil {
		return core.Record{}, err
	}
	if err := a.coll.Put(ctx, r.ID, ToFields(r, form)); err != nil {
		log.NewStructuredLogger(a.logger).LogError(ctx, "Failed to store record", err,
			log.ComponentRecords, log.OpCreate, log.NewFields().WithRecord(r.ID, r.Date.ISO(), string(r.Type), r.Amount.Cents, r.TableFee.Cents, r.Stake))
		return core.Record{}, fmt.Errorf("store record: %w", err)
	}
	log.NewStructuredLogger(a.logger).LogRecordCreated(ctx, r.ID, r.Date.ISO(), string(r.Type), r.Amount.Cents, r.TableFee.Cents, r.Stake)
	return r, nil
}

// DeleteRecord removes id. Deleting an unknown id succeeds.
func (a *Adapter) DeleteRecord(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.ErrEmptyID
	}
	if err := a.coll.Remove(ctx, id); err != nil {
		log.NewStructuredLogger(a.logger).LogError(ctx, "Failed to delete record", err,
			log.ComponentRecords, log.OpDelete, log.NewFields().With(log.FieldRecordID, id))
		return fmt.Errorf("delete record: %w", err)
	}
	a.logger.InfoContext(ctx, "Record deleted", log.FieldRecordID, id, log.FieldOperation, log.OpDelete)
	return nil
}

// Subscribe delivers the normalized, ordered record list on every change.
func (a *Adapter) Subscribe(ctx context.Context, onRecords func([]core.Record), onError func(error)) (docstore.Subscription, error) {
	sub, err := a.coll.Subscribe(ctx, func(docs []docstore.Document) {
		onRecords(a.OnRecordsChanged(docs))
	}, onError)
	if err != nil {
		return nil, fmt.Errorf("subscribe records: %w", err)
	}
	return sub, nil
}

// OnRecordsChanged turns a raw snapshot into the presented record list.
// Documents without a readable date are dropped; a repeated id keeps its
// last occurrence. The result is ordered by date, newest first, with ties
// broken by id descending.
func (a *Adapter) OnRecordsChanged(docs []docstore.Document) []core.Record {
	pos := make(map[string]int, len(docs))
	out := make([]core.Record, 0, len(docs))
	for _, d := range docs {
		r, err := FromDocument(d)
		if err != nil {
			a.logger.Warn("Skipping unreadable record", log.FieldRecordID, d.ID, log.FieldError, err)
			continue
		}
		if i, ok := pos[r.ID]; ok {
			out[i] = r
			continue
		}
		pos[r.ID] = len(out)
		out = append(out, r)
	}
	SortRecords(out)
	return out
}

// SortRecords orders records by date descending, then id descending.
func SortRecords(rs []core.Record) {
	sort.SliceStable(rs, func(i, j int) bool {
		di, dj := rs[i].Date.ISO(), rs[j].Date.ISO()
		if di != dj {
			return di > dj
		}
		return idLess(rs[j].ID, rs[i].ID)
	})
}

// idLess compares numeric ids numerically and anything else lexically.
func idLess(a, b string) bool {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}

// FromDocument normalizes one stored document. Numeric fields that are
// missing or unreadable become zero; only an unreadable date is an error.
func FromDocument(d docstore.Document) (core.Record, error) {
	if strings.TrimSpace(d.ID) == "" {
		return core.Record{}, core.ErrEmptyID
	}
	date, err := core.ParseDate(stringField(d.Fields, FieldDate))
	if err != nil {
		return core.Record{}, err
	}
	amount, _ := core.CoerceMoney(d.Fields[FieldAmount])
	fee, _ := core.CoerceMoney(d.Fields[FieldTableFee])

	stake, ok := d.Fields[FieldFinalStakes].(string)
	if !ok {
		stake = core.ResolveStake(stringField(d.Fields, FieldStakes), stringField(d.Fields, FieldCustomStakes))
	}

	var created time.Time
	if s := stringField(d.Fields, FieldCreatedAt); s != "" {
		created, _ = time.Parse(time.RFC3339Nano, s)
	}

	return core.Record{
		ID:        d.ID,
		Date:      date,
		Type:      core.ParseRecordType(stringField(d.Fields, FieldType)),
		Amount:    amount,
		TableFee:  fee,
		Stake:     stake,
		CreatedAt: created,
	}, nil
}

// ToFields is the stored layout of r. The raw preset and custom text from
// form are kept alongside the resolved label.
func ToFields(r core.Record, form FormInput) docstore.Fields {
	preset := strings.TrimSpace(form.Stakes)
	if preset == "" {
		preset = core.DefaultStake
	}
	return docstore.Fields{
		FieldDate:         r.Date.ISO(),
		FieldType:         string(r.Type),
		FieldAmount:       r.Amount.Float(),
		FieldTableFee:     r.TableFee.Float(),
		FieldStakes:       preset,
		FieldCustomStakes: strings.TrimSpace(form.CustomStakes),
		FieldFinalStakes:  r.Stake,
		FieldCreatedAt:    r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func stringField(f docstore.Fields, key string) string {
	s, _ := f[key].(string)
	return strings.TrimSpace(s)
}

// IDGenerator hands out millisecond timestamp ids that never repeat within
// one process, even when two records are created in the same millisecond.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

func (g *IDGenerator) Next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := now.UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return strconv.FormatInt(ms, 10)
}
