package importer

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/dvloznov/statement-importer/internal/logger"
	"github.com/dvloznov/statement-importer/internal/statement"
)

// Reasons recorded for skipped rows.
const (
	ReasonInvalidDate  = "Invalid date"
	ReasonNoWithdrawal = "Not a withdrawal or amount missing"
	ReasonDuplicate    = "Duplicate transaction"
)

// Result summarises one import. Every canonical row is either created or
// skipped, and SkippedReasons follows the row order.
type Result struct {
	CreatedCount   int                  `json:"created_count"`
	SkippedCount   int                  `json:"skipped_count"`
	Created        []domain.Transaction `json:"created"`
	SkippedReasons []string             `json:"skipped_reasons"`
}

// StoreError reports a failure of a category or transaction store. It aborts
// the import.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Options control a single import.
type Options struct {
	UserID                  string
	Filename                string
	ContentType             string
	Format                  statement.Format // overrides detection when set
	CreateMissingCategories bool
	SkipDuplicates          bool
	ArchiveURI              string // set when the upload was archived beforehand
}

// DefaultOptions returns options with category creation and duplicate
// skipping enabled.
func DefaultOptions(userID, filename string) Options {
	return Options{
		UserID:                  userID,
		Filename:                filename,
		CreateMissingCategories: true,
		SkipDuplicates:          true,
	}
}

// Importer turns uploaded statements into stored withdrawals.
type Importer struct {
	categories   CategoryDirectory
	transactions TransactionStore
	classifier   *Classifier
	archiver     Archiver
	adapters     map[statement.Format]statement.Adapter
	rules        []Rule
	suggester    CategorySuggester
}

// Option configures an Importer.
type Option func(*Importer)

// WithArchiver keeps a copy of every upload before it is parsed.
func WithArchiver(a Archiver) Option {
	return func(im *Importer) { im.archiver = a }
}

// WithSuggester asks s for a category when no rule matches.
func WithSuggester(s CategorySuggester) Option {
	return func(im *Importer) { im.suggester = s }
}

// WithRules replaces the keyword rules.
func WithRules(rules []Rule) Option {
	return func(im *Importer) { im.rules = rules }
}

// WithAdapter replaces the adapter used for format f.
func WithAdapter(f statement.Format, a statement.Adapter) Option {
	return func(im *Importer) { im.adapters[f] = a }
}

// New creates an Importer backed by the given stores.
func New(categories CategoryDirectory, transactions TransactionStore, opts ...Option) *Importer {
	im := &Importer{
		categories:   categories,
		transactions: transactions,
		adapters:     make(map[statement.Format]statement.Adapter),
	}
	for _, opt := range opts {
		opt(im)
	}
	im.classifier = NewClassifier(im.rules, im.suggester)
	return im
}

func (im *Importer) adapterFor(f statement.Format) statement.Adapter {
	if a, ok := im.adapters[f]; ok {
		return a
	}
	return statement.AdapterFor(f)
}

// Import parses data and stores the withdrawals it contains in one batch.
// An unreadable file is reported in the result, not as an error. Store
// failures come back wrapping a *StoreError.
func (im *Importer) Import(ctx context.Context, data []byte, opts Options) (*Result, error) {
	format := opts.Format
	if format == "" {
		format = statement.DetectFormat(opts.Filename, opts.ContentType)
	}

	log := logger.FromContext(ctx).With().
		Str("user_id", opts.UserID).
		Str("filename", opts.Filename).
		Str("format", string(format)).
		Logger()
	ctx = logger.WithContext(ctx, log)

	state := &ImportState{
		Options: opts,
		Format:  format,
		Data:    data,
		Result:  newResult(),
	}

	steps := []ImportStep{
		&ParseStatementStep{adapter: im.adapterFor(format)},
		&EvaluateRowsStep{categories: im.categories, transactions: im.transactions, classifier: im.classifier},
		&ResolveCategoriesStep{categories: im.categories},
		&InsertTransactionsStep{transactions: im.transactions},
	}
	if im.archiver != nil {
		steps = append([]ImportStep{&ArchiveUploadStep{archiver: im.archiver}}, steps...)
	}

	if err := NewPipeline(steps...).Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("statement import failed")
		return nil, err
	}

	log.Info().
		Int("created", state.Result.CreatedCount).
		Int("skipped", state.Result.SkippedCount).
		Str("archive_uri", state.ArchiveURI).
		Msg("statement imported")
	return state.Result, nil
}

func newResult() *Result {
	return &Result{
		Created:        []domain.Transaction{},
		SkippedReasons: []string{},
	}
}
