package event

import (
	"encoding/json"
	"fmt"

	"github.com/orbcast/orbcast/internal/common/cnst"
)

// Event is implemented by every dispatchable platform event. The event type
// string is the discriminator used for subscription matching and for the
// wire representation.
type Event interface {
	EventType() string
}

// AssetEventCause describes the lifecycle change carried by an AssetEvent.
type AssetEventCause string

const (
	AssetEventCreate AssetEventCause = "CREATE"
	AssetEventUpdate AssetEventCause = "UPDATE"
	AssetEventDelete AssetEventCause = "DELETE"
)

// Asset is the asset snapshot carried by an AssetEvent.
type Asset struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	Type       string         `json:"type,omitempty"`
	Realm      string         `json:"realm,omitempty"`
	ParentID   string         `json:"parentId,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// AssetEvent signals an asset lifecycle change.
type AssetEvent struct {
	Cause AssetEventCause `json:"cause"`
	Asset Asset           `json:"asset"`
}

func (e *AssetEvent) EventType() string { return cnst.EventTypeAsset }

// MarshalJSON includes the event type discriminator in the wire form.
func (e *AssetEvent) MarshalJSON() ([]byte, error) {
	type alias AssetEvent
	return json.Marshal(struct {
		EventType string `json:"eventType"`
		*alias
	}{EventType: e.EventType(), alias: (*alias)(e)})
}

// AttributeRef identifies a single attribute on an asset.
type AttributeRef struct {
	AssetID string `json:"assetId"`
	Name    string `json:"name"`
}

// AttributeEvent signals an attribute-value change. A deletion is represented
// by the Deleted flag, not by suppressing delivery.
type AttributeEvent struct {
	Ref     AttributeRef `json:"ref"`
	Value   any          `json:"value,omitempty"`
	Deleted bool         `json:"deleted,omitempty"`
	Realm   string       `json:"realm,omitempty"`
}

func (e *AttributeEvent) EventType() string { return cnst.EventTypeAttribute }

// MarshalJSON includes the event type discriminator in the wire form.
func (e *AttributeEvent) MarshalJSON() ([]byte, error) {
	type alias AttributeEvent
	return json.Marshal(struct {
		EventType string `json:"eventType"`
		*alias
	}{EventType: e.EventType(), alias: (*alias)(e)})
}

// Unmarshal decodes a wire event by its eventType discriminator.
func Unmarshal(data []byte) (Event, error) {
	var probe struct {
		EventType string `json:"eventType"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to probe event type: %w", err)
	}

	switch probe.EventType {
	case cnst.EventTypeAsset:
		var ev AssetEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal asset event: %w", err)
		}
		return &ev, nil
	case cnst.EventTypeAttribute:
		var ev AttributeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attribute event: %w", err)
		}
		return &ev, nil
	default:
		return nil, fmt.Errorf("%w: %q", cnst.ErrUnknownEventType, probe.EventType)
	}
}
