package persistence

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Factory creates a zero architype for a registered type name.
type Factory interface {
	New(typeName string) (domain.Architype, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(typeName string) (domain.Architype, error)

// New calls f.
func (f FactoryFunc) New(typeName string) (domain.Architype, error) {
	return f(typeName)
}

// Encode builds the persisted record of an anchor. Architype fields are taken
// from its JSON form, so `json` tags decide names and exclusions.
func Encode(a domain.Anchored) (*domain.Record, error) {
	base := a.Base()
	rec := &domain.Record{
		ID:     base.ID,
		Kind:   base.Kind,
		Type:   base.Type,
		RootID: base.RootID,
		Access: base.Access.Clone(),
	}

	switch x := a.(type) {
	case *domain.NodeAnchor:
		rec.Edges = x.EdgeIDs()
	case *domain.EdgeAnchor:
		rec.Source = x.SourceID()
		rec.Target = x.TargetID()
		rec.Undirected = x.Undirected
	}

	if arch := base.Architype(); arch != nil {
		fields, err := fieldsOf(arch)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", base, err)
		}
		rec.Fields = fields
	}
	return rec, nil
}

// Decode rebuilds a persistent anchor from rec using f to allocate the architype.
func Decode(f Factory, rec *domain.Record) (domain.Anchored, error) {
	if !rec.Kind.Valid() {
		return nil, fmt.Errorf("%w: record %s has kind %q", domain.ErrInvalidOperand, rec.ID, rec.Kind)
	}
	arch, err := f.New(rec.Type)
	if err != nil {
		return nil, err
	}
	if len(rec.Fields) > 0 {
		if err := decodeFields(rec.Fields, arch); err != nil {
			return nil, fmt.Errorf("failed to decode fields of %s: %w", rec.ID, err)
		}
	}
	return domain.Restore(arch, rec)
}

func fieldsOf(arch domain.Architype) (map[string]any, error) {
	data, err := json.Marshal(arch)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

func decodeFields(fields map[string]any, arch domain.Architype) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Squash:           true,
		Result:           arch,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToTimeHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(fields)
}

// stringToTimeHook accepts the RFC 3339 form that encoding/json writes.
func stringToTimeHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	return time.Parse(time.RFC3339Nano, data.(string))
}
