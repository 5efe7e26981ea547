package document

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/coolbeans/statext/pkg/classify"
	"github.com/coolbeans/statext/pkg/metrics"
	"github.com/coolbeans/statext/pkg/normalize"
	"github.com/coolbeans/statext/pkg/pattern"
	"github.com/coolbeans/statext/pkg/segment"
	"github.com/coolbeans/statext/pkg/statement"
	"github.com/coolbeans/statext/pkg/store"
)

// Pipeline runs normalization, segmentation and classification for a
// document and publishes the resulting statements. Statements become
// visible only after the document reaches the completed state.
type Pipeline struct {
	registry *Registry
	store    *store.Store
	profiles *pattern.Registry
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the pipeline's logger.
func WithLogger(log zerolog.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = log }
}

// WithMetrics attaches ingestion metrics.
func WithMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithProfiles sets the segmentation profile registry. Without it the
// built-in dotted-numeric profile is used for every document.
func WithProfiles(r *pattern.Registry) PipelineOption {
	return func(p *Pipeline) { p.profiles = r }
}

// NewPipeline creates an ingestion pipeline over the given registry and
// statement store.
func NewPipeline(registry *Registry, st *store.Store, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		registry: registry,
		store:    st,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest registers a document for the given page texts and runs the
// pipeline synchronously. On failure the document ends in the failed
// state with the reason recorded and no statements are published.
func (p *Pipeline) Ingest(ctx context.Context, name, sourceInfo string, pages []string) (*Document, error) {
	return p.ingest(ctx, name, sourceInfo, normalize.Normalize(pages), "")
}

// IngestText is Ingest for raw unpaged text, honoring [PAGE n] markers
// already present in the input.
func (p *Pipeline) IngestText(ctx context.Context, name, sourceInfo, text string) (*Document, error) {
	return p.ingest(ctx, name, sourceInfo, normalize.NormalizeText(text), "")
}

// IngestWithProfile runs the pipeline using a named segmentation
// profile from the profile registry.
func (p *Pipeline) IngestWithProfile(ctx context.Context, name, sourceInfo, text, profileID string) (*Document, error) {
	return p.ingest(ctx, name, sourceInfo, normalize.NormalizeText(text), profileID)
}

// IngestAsync registers the document and runs the pipeline in the
// background, returning immediately with the document in the pending
// state. Callers poll the registry for completion.
func (p *Pipeline) IngestAsync(ctx context.Context, name, sourceInfo, text string) *Document {
	doc := p.registry.Create(name, sourceInfo)
	go func() {
		if err := p.process(ctx, doc.ID, normalize.NormalizeText(text), ""); err != nil {
			p.log.Error().Err(err).Str("document_id", doc.ID).Msg("ingestion failed")
		}
	}()
	return doc
}

// Reprocess re-runs segmentation for an already registered document,
// replacing its statement set. The document must not be mid-pipeline.
func (p *Pipeline) Reprocess(ctx context.Context, documentID, text, profileID string) error {
	doc, ok := p.registry.Get(documentID)
	if !ok {
		return fmt.Errorf("document %s not found", documentID)
	}
	if doc.Status == StatusProcessing {
		return fmt.Errorf("document %s is still processing", documentID)
	}

	// Re-enter the state machine from the top.
	doc.Status = StatusPending
	doc.Error = ""
	p.registry.Restore(doc)
	return p.process(ctx, documentID, normalize.NormalizeText(text), profileID)
}

func (p *Pipeline) ingest(ctx context.Context, name, sourceInfo string, n normalize.Normalized, profileID string) (*Document, error) {
	doc := p.registry.Create(name, sourceInfo)
	if err := p.process(ctx, doc.ID, n, profileID); err != nil {
		return p.mustGet(doc.ID), err
	}
	return p.mustGet(doc.ID), nil
}

// process drives one document through the pipeline state machine.
func (p *Pipeline) process(ctx context.Context, documentID string, n normalize.Normalized, profileID string) error {
	start := time.Now()

	if err := p.registry.Transition(documentID, StatusProcessing, ""); err != nil {
		return err
	}

	statements, err := p.extract(ctx, documentID, n, profileID)
	if err != nil {
		p.fail(documentID, err)
		p.metrics.ObserveIngestion("failed", 0, time.Since(start))
		return err
	}

	p.store.Populate(documentID, statements)
	p.registry.SetStatementCount(documentID, len(statements))
	if err := p.registry.Transition(documentID, StatusCompleted, ""); err != nil {
		return err
	}

	p.metrics.ObserveIngestion("completed", len(statements), time.Since(start))
	p.log.Info().
		Str("document_id", documentID).
		Int("statements", len(statements)).
		Int("pages", n.Pages()).
		Dur("elapsed", time.Since(start)).
		Msg("document ingested")
	return nil
}

// extract runs segmentation and classification, returning the ordered
// statement set for the document.
func (p *Pipeline) extract(ctx context.Context, documentID string, n normalize.Normalized, profileID string) ([]*statement.Statement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	profile, err := p.profile(profileID)
	if err != nil {
		return nil, err
	}

	segments := segment.NewSegmenterWithProfile(profile).Segment(n)
	if len(segments) == 0 {
		return nil, fmt.Errorf("document %s: %w", documentID, statement.ErrSegmentationFailure)
	}

	classifier := classify.NewClassifierWithProfile(profile)
	statements := make([]*statement.Statement, 0, len(segments))
	for i, seg := range segments {
		st := statement.New(documentID)
		st.OrderIndex = i
		st.SectionRef = seg.Reference
		st.HierarchyPath = seg.HierarchyPath
		st.SectionTitle = seg.Title
		st.PageNumber = seg.Page
		st.RegulationText = seg.Body
		st.Type = classifier.Classify(seg.Body)
		statements = append(statements, st)
	}
	return statements, nil
}

// profile resolves a profile id against the registry, falling back to
// the built-in default.
func (p *Pipeline) profile(profileID string) (*pattern.Profile, error) {
	if p.profiles == nil {
		return pattern.DefaultProfile(), nil
	}
	if profileID == "" {
		return p.profiles.Default(), nil
	}
	profile, ok := p.profiles.Get(profileID)
	if !ok {
		return nil, fmt.Errorf("segmentation profile %q not registered", profileID)
	}
	return profile, nil
}

func (p *Pipeline) fail(documentID string, cause error) {
	if err := p.registry.Transition(documentID, StatusFailed, cause.Error()); err != nil {
		p.log.Error().Err(err).Str("document_id", documentID).Msg("failed transition rejected")
	}
	p.log.Error().Err(cause).Str("document_id", documentID).Msg("pipeline failed")
}

func (p *Pipeline) mustGet(id string) *Document {
	doc, _ := p.registry.Get(id)
	return doc
}
