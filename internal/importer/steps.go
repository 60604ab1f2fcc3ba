package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/dvloznov/statement-importer/internal/logger"
	"github.com/dvloznov/statement-importer/internal/statement"
)

// ImportStep is one stage of an import.
type ImportStep interface {
	Execute(ctx context.Context, state *ImportState) error
}

// ImportState is shared by the steps of one import.
type ImportState struct {
	Options    Options
	Format     statement.Format
	Data       []byte
	ArchiveURI string
	Rows       []statement.CanonicalRow
	Accepted   []domain.Candidate
	Result     *Result

	// done stops the pipeline early with Result as the outcome.
	done bool
}

func (s *ImportState) skip(reason string) {
	s.Result.SkippedCount++
	s.Result.SkippedReasons = append(s.Result.SkippedReasons, reason)
}

// Pipeline runs steps in order until one fails or the state is done.
type Pipeline struct {
	steps []ImportStep
}

// NewPipeline creates a pipeline over the given steps.
func NewPipeline(steps ...ImportStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs the steps sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *ImportState) error {
	for i, step := range p.steps {
		if state.done {
			return nil
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// ArchiveUploadStep stores the raw upload. Archive failures are logged and
// do not stop the import.
type ArchiveUploadStep struct {
	archiver Archiver
}

func (s *ArchiveUploadStep) Execute(ctx context.Context, state *ImportState) error {
	if state.Options.ArchiveURI != "" {
		state.ArchiveURI = state.Options.ArchiveURI
		return nil
	}
	uri, err := s.archiver.Archive(ctx, state.Options.UserID, state.Options.Filename, state.Data)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("could not archive statement")
		return nil
	}
	state.ArchiveURI = uri
	return nil
}

// ParseStatementStep runs the format adapter. A file the adapter cannot open
// ends the import with a single skipped entry.
type ParseStatementStep struct {
	adapter statement.Adapter
}

func (s *ParseStatementStep) Execute(ctx context.Context, state *ImportState) error {
	rows, err := s.adapter.Parse(state.Data)
	if err != nil {
		var fe *statement.FormatError
		if !errors.As(err, &fe) {
			return fmt.Errorf("ParseStatementStep: %w", err)
		}
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("statement could not be parsed")
		state.skip(fmt.Sprintf("Could not parse file: %s format not recognised", fe.Format))
		state.done = true
		return nil
	}
	state.Rows = rows
	log := logger.FromContext(ctx)
	log.Debug().Int("rows", len(rows)).Msg("statement parsed")
	return nil
}

// EvaluateRowsStep turns rows into candidates or skip reasons, in row order.
type EvaluateRowsStep struct {
	categories   CategoryDirectory
	transactions TransactionStore
	classifier   *Classifier
}

func (s *EvaluateRowsStep) Execute(ctx context.Context, state *ImportState) error {
	if len(state.Rows) == 0 {
		return nil
	}

	cats, err := s.categories.List(ctx, state.Options.UserID)
	if err != nil {
		return &StoreError{Op: "list categories", Err: err}
	}
	names := make([]string, 0, len(cats))
	for _, c := range cats {
		names = append(names, c.Name)
	}

	var dupes *DuplicateFilter
	if state.Options.SkipDuplicates {
		dupes = NewDuplicateFilter(s.transactions, state.Options.UserID)
	}

	for _, row := range state.Rows {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("EvaluateRowsStep: %w", err)
		}

		date, ok := statement.ParseDate(statement.Value(row.Date))
		if !ok {
			state.skip(ReasonInvalidDate)
			continue
		}
		amount, ok := ResolveWithdrawal(row)
		if !ok {
			state.skip(ReasonNoWithdrawal)
			continue
		}

		cand := domain.Candidate{
			Amount:          amount,
			Description:     BuildDescription(row),
			TransactionDate: date,
		}
		cand.SuggestedCategory = s.classifier.Classify(ctx, cand.Description, names)

		if dupes != nil {
			dup, err := dupes.IsDuplicate(ctx, cand)
			if err != nil {
				return err
			}
			if dup {
				state.skip(ReasonDuplicate)
				continue
			}
		}
		state.Accepted = append(state.Accepted, cand)
	}
	return nil
}

// ResolveCategoriesStep maps suggested names to category IDs, creating
// missing categories when allowed. Names are looked up once per import.
type ResolveCategoriesStep struct {
	categories CategoryDirectory
}

func (s *ResolveCategoriesStep) Execute(ctx context.Context, state *ImportState) error {
	cache := make(map[string]string)
	for i := range state.Accepted {
		name := state.Accepted[i].SuggestedCategory
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		id, ok := cache[key]
		if !ok {
			var err error
			id, err = s.resolve(ctx, state.Options, name)
			if err != nil {
				return err
			}
			cache[key] = id
		}
		state.Accepted[i].CategoryID = id
	}
	return nil
}

func (s *ResolveCategoriesStep) resolve(ctx context.Context, opts Options, name string) (string, error) {
	cat, err := s.categories.FindByName(ctx, opts.UserID, name)
	if err != nil {
		return "", &StoreError{Op: "find category", Err: err}
	}
	if cat != nil {
		return cat.ID, nil
	}
	if !opts.CreateMissingCategories {
		return "", nil
	}
	cat, err = s.categories.Create(ctx, opts.UserID, name, domain.ImportCategoryDefaults())
	if err != nil {
		return "", &StoreError{Op: "create category", Err: err}
	}
	log := logger.FromContext(ctx)
	log.Info().Str("category", name).Str("category_id", cat.ID).Msg("category created")
	return cat.ID, nil
}

// InsertTransactionsStep writes all accepted candidates in one batch.
type InsertTransactionsStep struct {
	transactions TransactionStore
}

func (s *InsertTransactionsStep) Execute(ctx context.Context, state *ImportState) error {
	if len(state.Accepted) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("InsertTransactionsStep: %w", err)
	}
	created, err := s.transactions.BulkCreate(ctx, state.Options.UserID, state.Accepted)
	if err != nil {
		return &StoreError{Op: "bulk create", Err: err}
	}
	state.Result.Created = created
	state.Result.CreatedCount = len(created)
	return nil
}
