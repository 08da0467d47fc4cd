package tool

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Source records where schema knowledge came from.
type Source string

const (
	SourceDeclared Source = "DECLARED"
	SourceObserved Source = "OBSERVED"
)

// ReturnSchema tracks what a tool returns: the declared or inferred success
// shape, a separately-tracked error shape, and observation bookkeeping.
type ReturnSchema struct {
	Success       *Shape
	Error         *Shape
	Description   string
	TypeHint      string
	Observations  int
	LastUpdatedAt time.Time

	sources map[Source]bool
}

// NewReturnSchema returns a schema with the given success shape.
func NewReturnSchema(success *Shape) *ReturnSchema {
	return &ReturnSchema{Success: success}
}

// Sources returns the source set, sorted for stable output.
func (rs *ReturnSchema) Sources() []Source {
	out := make([]Source, 0, len(rs.sources))
	for s := range rs.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasSource reports whether s is in the source set.
func (rs *ReturnSchema) HasSource(s Source) bool {
	return rs.sources[s]
}

func (rs *ReturnSchema) addSource(s Source) {
	if rs.sources == nil {
		rs.sources = make(map[Source]bool, 2)
	}
	rs.sources[s] = true
}

// Clone returns a deep copy.
func (rs *ReturnSchema) Clone() *ReturnSchema {
	if rs == nil {
		return nil
	}
	out := &ReturnSchema{
		Success:       rs.Success.Clone(),
		Error:         rs.Error.Clone(),
		Description:   rs.Description,
		TypeHint:      rs.TypeHint,
		Observations:  rs.Observations,
		LastUpdatedAt: rs.LastUpdatedAt,
	}
	for s := range rs.sources {
		out.addSource(s)
	}
	return out
}

// SchemaRegistry holds declared and effective (declared ⊔ observed) return
// schemas per tool name. Writes serialize per registry; reads return deep
// copies so callers never see concurrent mutation.
type SchemaRegistry struct {
	mu        sync.RWMutex
	declared  map[string]*ReturnSchema
	effective map[string]*ReturnSchema
}

func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{
		declared:  make(map[string]*ReturnSchema),
		effective: make(map[string]*ReturnSchema),
	}
}

// RegisterDeclared seeds both mappings with the declared schema.
func (r *SchemaRegistry) RegisterDeclared(name string, schema *ReturnSchema) error {
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if schema == nil {
		return fmt.Errorf("declared schema for '%s' cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	decl := schema.Clone()
	decl.addSource(SourceDeclared)
	r.declared[name] = decl
	r.effective[name] = decl.Clone()
	return nil
}

// Observe folds the shape of a result payload into the effective schema.
// Errors never propagate to the caller; malformed payloads are logged and
// dropped.
func (r *SchemaRegistry) Observe(name, payload string, success bool) {
	if name == "" {
		return
	}

	shape, err := ShapeOfJSON(payload)
	if err != nil {
		slog.Debug("Dropping unparseable schema observation",
			"tool", name,
			"error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	schema, ok := r.effective[name]
	if !ok {
		schema = &ReturnSchema{}
		r.effective[name] = schema
	}

	if success {
		if schema.Success == nil {
			schema.Success = shape
		} else {
			schema.Success = MergeShapes(schema.Success, shape)
		}
	} else {
		if schema.Error == nil {
			schema.Error = shape
		} else {
			schema.Error = MergeShapes(schema.Error, shape)
		}
	}

	schema.Observations++
	schema.LastUpdatedAt = time.Now()
	schema.addSource(SourceObserved)
}

// Effective returns the declared ⊔ observed schema for name.
func (r *SchemaRegistry) Effective(name string) (*ReturnSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schema, ok := r.effective[name]
	return schema.Clone(), ok
}

// Declared returns the declared schema for name.
func (r *SchemaRegistry) Declared(name string) (*ReturnSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schema, ok := r.declared[name]
	return schema.Clone(), ok
}

// ClearObserved reverts name's effective schema to its declared schema.
// Tools without a declared schema lose their entry entirely.
func (r *SchemaRegistry) ClearObserved(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearObservedLocked(name)
}

// ClearAllObserved reverts every effective schema to its declared schema.
func (r *SchemaRegistry) ClearAllObserved() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.effective {
		r.clearObservedLocked(name)
	}
}

func (r *SchemaRegistry) clearObservedLocked(name string) {
	if decl, ok := r.declared[name]; ok {
		r.effective[name] = decl.Clone()
	} else {
		delete(r.effective, name)
	}
}

// Observation is one (tool, payload, success) triple awaiting folding.
type Observation struct {
	Tool    string
	Payload string
	Success bool
}

// Observer decouples schema observation from the tool-call critical path.
// Publish never blocks: when the queue is full the observation is dropped
// with a log line. A single drain goroutine folds observations into the
// schema registry.
type Observer struct {
	registry *SchemaRegistry
	queue    chan Observation
	done     chan struct{}
	once     sync.Once
}

const defaultObserverQueue = 256

func NewObserver(registry *SchemaRegistry, queueSize int) *Observer {
	if queueSize <= 0 {
		queueSize = defaultObserverQueue
	}
	o := &Observer{
		registry: registry,
		queue:    make(chan Observation, queueSize),
		done:     make(chan struct{}),
	}
	go o.drain()
	return o
}

func (o *Observer) drain() {
	defer close(o.done)
	for obs := range o.queue {
		o.registry.Observe(obs.Tool, obs.Payload, obs.Success)
	}
}

// Publish enqueues an observation without blocking.
func (o *Observer) Publish(tool, payload string, success bool) {
	select {
	case o.queue <- Observation{Tool: tool, Payload: payload, Success: success}:
	default:
		slog.Debug("Schema observation queue full, dropping", "tool", tool)
	}
}

// Close stops accepting observations and waits for the queue to drain.
func (o *Observer) Close() {
	o.once.Do(func() {
		close(o.queue)
	})
	<-o.done
}
