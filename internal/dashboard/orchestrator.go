package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/phuslu/log"

	"FinVision/internal/cache"
	"FinVision/internal/collector"
	"FinVision/internal/model"
)

// call is one in-flight market fetch that any number of callers can wait on.
type call struct {
	done chan struct{}
	err  error
}

// Orchestrator owns the dashboard state: the selection, the snapshot cache,
// the custom chart snapshot and the in-flight work. Fetchers never touch it.
type Orchestrator struct {
	fetcher  collector.Fetcher
	analyzer collector.ChartAnalyzer
	fallback map[model.AssetID]*model.AssetSnapshot
	cache    *cache.SnapshotCache

	mu          sync.Mutex
	selection   model.AssetID
	custom      *model.AssetSnapshot
	inflight    map[model.AssetID]*call
	failed      map[model.AssetID]error
	analyzing   bool
	message     string
	messageKind MessageKind
}

// New creates an Orchestrator. fallback is the synthetic table shown for
// standard assets that could not be fetched. Silver is selected initially.
func New(fetcher collector.Fetcher, analyzer collector.ChartAnalyzer, fallback map[model.AssetID]*model.AssetSnapshot) *Orchestrator {
	if fallback == nil {
		fallback = map[model.AssetID]*model.AssetSnapshot{}
	}
	return &Orchestrator{
		fetcher:   fetcher,
		analyzer:  analyzer,
		fallback:  fallback,
		cache:     cache.New(),
		selection: model.AssetSilver,
		inflight:  make(map[model.AssetID]*call),
		failed:    make(map[model.AssetID]error),
	}
}

// View returns the current render state without starting any work.
func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.viewLocked(o.selection, true)
}

func (o *Orchestrator) viewLocked(id model.AssetID, withMessage bool) View {
	s := state{
		selection: id,
		analyzing: o.analyzing,
	}
	if withMessage {
		s.message, s.kind = o.message, o.messageKind
	}
	if id.IsCustom() {
		s.custom = o.custom.Clone()
		return render(s)
	}
	s.cached, _ = o.cache.Get(id)
	_, s.fetching = o.inflight[id]
	_, s.failed = o.failed[id]
	s.fallback = o.fallback[id].Clone()
	return render(s)
}

// Select changes the selected asset and clears any surfaced message.
// It does not fetch.
func (o *Orchestrator) Select(id model.AssetID) View {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selection = id
	o.message, o.messageKind = "", ""
	return o.viewLocked(id, true)
}

// Resolve returns the view for the current selection, fetching the selected
// standard asset on a cache miss. Concurrent callers share one fetch. If ctx
// ends first the FETCHING view is returned; the fetch still completes and
// its result lands in the cache.
func (o *Orchestrator) Resolve(ctx context.Context) View {
	o.mu.Lock()
	id := o.selection
	if id.IsCustom() {
		v := o.viewLocked(id, true)
		o.mu.Unlock()
		return v
	}
	if _, ok := o.cache.Get(id); ok {
		v := o.viewLocked(id, true)
		o.mu.Unlock()
		return v
	}
	o.message, o.messageKind = "", ""
	c := o.startLocked(ctx, id)
	o.mu.Unlock()

	wait(ctx, c)
	return o.View()
}

// Refresh evicts and refetches the selected asset. The custom asset has no
// market source, so refreshing it only returns the current view.
func (o *Orchestrator) Refresh(ctx context.Context) (View, error) {
	o.mu.Lock()
	id := o.selection
	o.mu.Unlock()
	if id.IsCustom() {
		return o.View(), nil
	}
	return o.RefreshAsset(ctx, id)
}

// RefreshAsset evicts id from the cache and fetches it again. A fetch already
// in flight for id is joined rather than duplicated.
func (o *Orchestrator) RefreshAsset(ctx context.Context, id model.AssetID) (View, error) {
	if id.IsCustom() {
		return o.View(), fmt.Errorf("%w: %s cannot be refreshed", model.ErrUnknownAsset, id)
	}
	o.mu.Lock()
	o.cache.Delete(id)
	c := o.startLocked(ctx, id)
	o.mu.Unlock()

	wait(ctx, c)
	return o.View(), nil
}

// Lookup resolves id without changing the selection. The returned view
// carries no message.
func (o *Orchestrator) Lookup(ctx context.Context, id model.AssetID) View {
	o.mu.Lock()
	if id.IsCustom() {
		v := o.viewLocked(id, false)
		o.mu.Unlock()
		return v
	}
	if _, ok := o.cache.Get(id); ok {
		v := o.viewLocked(id, false)
		o.mu.Unlock()
		return v
	}
	c := o.startLocked(ctx, id)
	o.mu.Unlock()

	wait(ctx, c)
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.viewLocked(id, false)
}

// AnalyzeImage selects the custom asset and digitizes image. On failure the
// previous custom snapshot is kept and a hard error is surfaced. Only one
// analysis runs at a time; a second call returns model.ErrBusy.
func (o *Orchestrator) AnalyzeImage(ctx context.Context, image []byte, mimeType string) (View, error) {
	o.mu.Lock()
	if o.analyzing {
		v := o.viewLocked(o.selection, true)
		o.mu.Unlock()
		return v, model.ErrBusy
	}
	o.analyzing = true
	o.selection = model.AssetCustom
	o.message, o.messageKind = "", ""
	o.mu.Unlock()

	snap, err := o.analyzer.AnalyzeChart(context.WithoutCancel(ctx), image, mimeType)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.analyzing = false
	if err != nil {
		log.Error().Err(err).Int("bytes", len(image)).Str("mime", mimeType).Msg("chart analysis failed")
		if o.selection.IsCustom() {
			o.message, o.messageKind = ErrorChartAnalysis, MessageError
		}
		return o.viewLocked(o.selection, true), fmt.Errorf("analyze chart: %w", err)
	}
	o.custom = snap.Clone()
	log.Info().Str("id", snap.ID).Str("name", snap.Name).Int("points", len(snap.Series)).Msg("chart analyzed")
	return o.viewLocked(o.selection, true), nil
}

// startLocked joins the fetch in flight for id or starts a new one.
// The fetch is detached from ctx so it always completes.
func (o *Orchestrator) startLocked(ctx context.Context, id model.AssetID) *call {
	if c, ok := o.inflight[id]; ok {
		return c
	}
	c := &call{done: make(chan struct{})}
	o.inflight[id] = c
	go o.fetch(context.WithoutCancel(ctx), id, c)
	return c
}

func (o *Orchestrator) fetch(ctx context.Context, id model.AssetID, c *call) {
	snap, err := o.fetchOnce(ctx, id)
	if err == nil && snap == nil {
		err = fmt.Errorf("%w: %s returned no snapshot", model.ErrResponse, o.fetcher.Name())
	}

	o.mu.Lock()
	delete(o.inflight, id)
	if err == nil {
		o.cache.Set(id, snap.Normalize())
		delete(o.failed, id)
		log.Info().Str("asset", string(id)).Int("points", len(snap.Series)).Int("sources", len(snap.Sources)).Msg("market data cached")
	} else {
		o.failed[id] = err
		log.Warn().Err(err).Str("asset", string(id)).Msg("market fetch failed, using fallback data")
		// Results for an identity that is no longer selected must not
		// surface a message on the current view.
		if o.selection == id && errors.Is(err, model.ErrCredentialMissing) {
			o.message, o.messageKind = AdvisoryCredentialMissing, MessageAdvisory
		}
	}
	c.err = err
	o.mu.Unlock()
	close(c.done)
}

// fetchOnce runs the fetcher in the detached goroutine, where a panic would
// otherwise end the process.
func (o *Orchestrator) fetchOnce(ctx context.Context, id model.AssetID) (snap *model.AssetSnapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			snap, err = nil, fmt.Errorf("%w: %s panicked: %v", model.ErrResponse, o.fetcher.Name(), r)
		}
	}()
	return o.fetcher.FetchAsset(ctx, id)
}

func wait(ctx context.Context, c *call) {
	select {
	case <-c.done:
	case <-ctx.Done():
	}
}
