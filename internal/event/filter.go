package event

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/orbcast/orbcast/internal/common/cnst"
)

// Predicate decides whether an event matches a subscription's filter. A
// predicate must be pure; a panicking predicate is treated as "does not
// match" by the dispatcher.
type Predicate interface {
	Match(Event) bool
}

// PredicateFunc adapts a plain function to a Predicate. It has no wire
// representation and is used for server-internal subscriptions.
type PredicateFunc func(Event) bool

func (f PredicateFunc) Match(ev Event) bool { return f(ev) }

const (
	filterTypeAsset     = "asset"
	filterTypeAttribute = "attribute"
)

// AssetFilter restricts asset events to particular assets, parents, or a
// realm. Empty fields impose no restriction.
type AssetFilter struct {
	AssetIDs  []string `json:"assetIds,omitempty"`
	ParentIDs []string `json:"parentIds,omitempty"`
	Realm     string   `json:"realm,omitempty"`
}

func (f *AssetFilter) Match(ev Event) bool {
	ae, ok := ev.(*AssetEvent)
	if !ok {
		return false
	}
	if f.Realm != "" && f.Realm != ae.Asset.Realm {
		return false
	}
	if len(f.AssetIDs) > 0 && !slices.Contains(f.AssetIDs, ae.Asset.ID) {
		return false
	}
	if len(f.ParentIDs) > 0 && !slices.Contains(f.ParentIDs, ae.Asset.ParentID) {
		return false
	}
	return true
}

// MarshalJSON includes the filter type discriminator in the wire form.
func (f *AssetFilter) MarshalJSON() ([]byte, error) {
	type alias AssetFilter
	return json.Marshal(struct {
		FilterType string `json:"filterType"`
		*alias
	}{FilterType: filterTypeAsset, alias: (*alias)(f)})
}

// AttributeFilter restricts attribute events by asset id, attribute names,
// or a realm. Empty fields impose no restriction.
type AttributeFilter struct {
	AssetID string   `json:"assetId,omitempty"`
	Names   []string `json:"names,omitempty"`
	Realm   string   `json:"realm,omitempty"`
}

func (f *AttributeFilter) Match(ev Event) bool {
	ae, ok := ev.(*AttributeEvent)
	if !ok {
		return false
	}
	if f.Realm != "" && f.Realm != ae.Realm {
		return false
	}
	if f.AssetID != "" && f.AssetID != ae.Ref.AssetID {
		return false
	}
	if len(f.Names) > 0 && !slices.Contains(f.Names, ae.Ref.Name) {
		return false
	}
	return true
}

// MarshalJSON includes the filter type discriminator in the wire form.
func (f *AttributeFilter) MarshalJSON() ([]byte, error) {
	type alias AttributeFilter
	return json.Marshal(struct {
		FilterType string `json:"filterType"`
		*alias
	}{FilterType: filterTypeAttribute, alias: (*alias)(f)})
}

// UnmarshalFilter decodes a wire filter by its filterType discriminator.
func UnmarshalFilter(data []byte) (Predicate, error) {
	var probe struct {
		FilterType string `json:"filterType"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to probe filter type: %w", err)
	}

	switch probe.FilterType {
	case filterTypeAsset:
		var f AssetFilter
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to unmarshal asset filter: %w", err)
		}
		return &f, nil
	case filterTypeAttribute:
		var f AttributeFilter
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attribute filter: %w", err)
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("%w: %q", cnst.ErrUnknownFilterType, probe.FilterType)
	}
}
