package tool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaRegistry_IdenticalObservationsAreExact(t *testing.T) {
	r := NewSchemaRegistry()

	payload := `{"ok": true, "value": "x"}`
	for i := 0; i < 5; i++ {
		r.Observe("lookup", payload, true)
	}

	schema, ok := r.Effective("lookup")
	require.True(t, ok)
	assert.Equal(t, 5, schema.Observations)

	want, err := ShapeOfJSON(payload)
	require.NoError(t, err)
	assert.True(t, want.Equal(schema.Success), "repeated identical observations must not widen the shape")
}

func TestSchemaRegistry_ObserveRefines(t *testing.T) {
	r := NewSchemaRegistry()

	r.Observe("lookup", `{"ok": true, "value": 1}`, true)
	r.Observe("lookup", `{"ok": true, "value": "text"}`, true)

	schema, ok := r.Effective("lookup")
	require.True(t, ok)

	okField, found := schema.Success.Field("ok")
	require.True(t, found)
	assert.Equal(t, TypeBoolean, okField.Primitive)

	value, found := schema.Success.Field("value")
	require.True(t, found)
	assert.Equal(t, TypeUnknown, value.Primitive)
}

func TestSchemaRegistry_ErrorShapeTrackedSeparately(t *testing.T) {
	r := NewSchemaRegistry()

	r.Observe("lookup", `{"ok": true, "value": 1}`, true)
	r.Observe("lookup", `{"error": "not found"}`, false)

	schema, _ := r.Effective("lookup")
	require.NotNil(t, schema.Error)
	_, hasError := schema.Error.Field("error")
	assert.True(t, hasError)
	_, successHasError := schema.Success.Field("error")
	assert.False(t, successHasError, "error payloads must not pollute the success shape")
}

func TestSchemaRegistry_MalformedPayloadDropped(t *testing.T) {
	r := NewSchemaRegistry()

	r.Observe("lookup", `{"ok": true}`, true)
	r.Observe("lookup", `not json at all`, true)

	schema, ok := r.Effective("lookup")
	require.True(t, ok)
	assert.Equal(t, 1, schema.Observations)
}

func TestSchemaRegistry_DeclaredSurvivesClear(t *testing.T) {
	r := NewSchemaRegistry()

	declared := NewReturnSchema(ObjectShape(Field{Name: "count", Shape: PrimitiveShape(TypeInteger)}))
	require.NoError(t, r.RegisterDeclared("count_items", declared))

	r.Observe("count_items", `{"count": 3, "extra": true}`, true)
	schema, _ := r.Effective("count_items")
	_, hasExtra := schema.Success.Field("extra")
	assert.True(t, hasExtra)
	assert.ElementsMatch(t, []Source{SourceDeclared, SourceObserved}, schema.Sources())

	r.ClearObserved("count_items")
	schema, ok := r.Effective("count_items")
	require.True(t, ok)
	_, hasExtra = schema.Success.Field("extra")
	assert.False(t, hasExtra)
	assert.Equal(t, []Source{SourceDeclared}, schema.Sources())
}

func TestSchemaRegistry_ClearWithoutDeclaredRemovesEntry(t *testing.T) {
	r := NewSchemaRegistry()
	r.Observe("ad_hoc", `{"a": 1}`, true)

	r.ClearObserved("ad_hoc")
	_, ok := r.Effective("ad_hoc")
	assert.False(t, ok)
}

func TestSchemaRegistry_ClearAllObserved(t *testing.T) {
	r := NewSchemaRegistry()
	require.NoError(t, r.RegisterDeclared("a", NewReturnSchema(PrimitiveShape(TypeString))))
	r.Observe("a", `{"x": 1}`, true)
	r.Observe("b", `{"y": 2}`, true)

	r.ClearAllObserved()

	a, ok := r.Effective("a")
	require.True(t, ok)
	assert.Equal(t, 0, a.Observations)
	_, ok = r.Effective("b")
	assert.False(t, ok)
}

func TestSchemaRegistry_ReadsAreCopies(t *testing.T) {
	r := NewSchemaRegistry()
	r.Observe("t", `{"a": 1}`, true)

	schema, _ := r.Effective("t")
	schema.Success.Fields[0].Shape.Primitive = TypeString

	again, _ := r.Effective("t")
	a, _ := again.Success.Field("a")
	assert.Equal(t, TypeInteger, a.Primitive)
}

func TestObserver_PublishAndDrain(t *testing.T) {
	r := NewSchemaRegistry()
	o := NewObserver(r, 16)

	o.Publish("lookup", `{"ok": true}`, true)
	o.Publish("lookup", `{"ok": false}`, true)
	o.Close()

	schema, ok := r.Effective("lookup")
	require.True(t, ok)
	assert.Equal(t, 2, schema.Observations)
	assert.WithinDuration(t, time.Now(), schema.LastUpdatedAt, time.Minute)
}

func TestObserver_CloseIsIdempotent(t *testing.T) {
	o := NewObserver(NewSchemaRegistry(), 1)
	o.Close()
	o.Close()
}
