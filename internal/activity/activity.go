// Package activity implements the Activity model submitted by producer
// clients and its normalization into canonical outgoing form.
package activity

import (
	"encoding/json"
	"time"
)

// Timestamps carries optional start/end markers, in milliseconds once
// normalized.
type Timestamps struct {
	Start *uint64 `json:"start,omitempty"`
	End   *uint64 `json:"end,omitempty"`
}

// Assets carries optional image keys and tooltip text.
type Assets struct {
	LargeImage *string `json:"large_image,omitempty"`
	LargeText  *string `json:"large_text,omitempty"`
	SmallImage *string `json:"small_image,omitempty"`
	SmallText  *string `json:"small_text,omitempty"`
}

// Party carries an optional party id and [current, max] size pair.
type Party struct {
	ID   *string    `json:"id,omitempty"`
	Size *[2]uint32 `json:"size,omitempty"`
}

// Secrets carries optional join/spectate/match tokens.
type Secrets struct {
	Join     *string `json:"join,omitempty"`
	Spectate *string `json:"spectate,omitempty"`
	Match    *string `json:"match,omitempty"`
}

// Button is a clickable Rich Presence button, submitted form.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Activity is the Rich Presence descriptor submitted by a client. Unknown
// fields pass through verbatim via Extra, the idiomatic-Go analogue of
// serde's flatten.
type Activity struct {
	Name       string
	State      *string
	Details    *string
	Timestamps *Timestamps
	Assets     *Assets
	Party      *Party
	Secrets    *Secrets
	Buttons    []Button
	Instance   *bool
	Flags      *uint32
	Extra      map[string]json.RawMessage
}

var knownFields = map[string]bool{
	"name": true, "state": true, "details": true, "timestamps": true,
	"assets": true, "party": true, "secrets": true, "buttons": true,
	"instance": true, "flags": true,
}

// UnmarshalJSON decodes the known fields and stashes everything else in
// Extra.
func (a *Activity) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Activity{}
	if v, ok := raw["name"]; ok {
		if err := json.Unmarshal(v, &a.Name); err != nil {
			return err
		}
	}
	if v, ok := raw["state"]; ok {
		if err := json.Unmarshal(v, &a.State); err != nil {
			return err
		}
	}
	if v, ok := raw["details"]; ok {
		if err := json.Unmarshal(v, &a.Details); err != nil {
			return err
		}
	}
	if v, ok := raw["timestamps"]; ok {
		if err := json.Unmarshal(v, &a.Timestamps); err != nil {
			return err
		}
	}
	if v, ok := raw["assets"]; ok {
		if err := json.Unmarshal(v, &a.Assets); err != nil {
			return err
		}
	}
	if v, ok := raw["party"]; ok {
		if err := json.Unmarshal(v, &a.Party); err != nil {
			return err
		}
	}
	if v, ok := raw["secrets"]; ok {
		if err := json.Unmarshal(v, &a.Secrets); err != nil {
			return err
		}
	}
	if v, ok := raw["buttons"]; ok {
		if err := json.Unmarshal(v, &a.Buttons); err != nil {
			return err
		}
	}
	if v, ok := raw["instance"]; ok {
		if err := json.Unmarshal(v, &a.Instance); err != nil {
			return err
		}
	}
	if v, ok := raw["flags"]; ok {
		if err := json.Unmarshal(v, &a.Flags); err != nil {
			return err
		}
	}
	for k, v := range raw {
		if knownFields[k] {
			continue
		}
		if a.Extra == nil {
			a.Extra = make(map[string]json.RawMessage)
		}
		a.Extra[k] = v
	}
	return nil
}

// MarshalJSON emits the known fields followed by Extra, so fields Normalize
// rewrote into Extra (e.g. "buttons") take precedence on the wire.
func (a Activity) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(a.Extra)+8)
	putField(out, "name", a.Name)
	putOptional(out, "state", a.State)
	putOptional(out, "details", a.Details)
	putOptional(out, "timestamps", a.Timestamps)
	putOptional(out, "assets", a.Assets)
	putOptional(out, "party", a.Party)
	putOptional(out, "secrets", a.Secrets)
	if a.Buttons != nil {
		putField(out, "buttons", a.Buttons)
	}
	putOptional(out, "instance", a.Instance)
	putOptional(out, "flags", a.Flags)
	for k, v := range a.Extra {
		out[k] = v
	}
	return json.Marshal(out)
}

func putField(out map[string]json.RawMessage, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	out[key] = b
}

func putOptional[T any](out map[string]json.RawMessage, key string, v *T) {
	if v == nil {
		return
	}
	putField(out, key, v)
}

// Normalize applies the canonical wire transformation exactly once:
// timestamp unit coercion, instance-flag synthesis, and button rewrite. It
// is idempotent up to the timestamp heuristic.
func Normalize(a Activity) Activity {
	nowMS := uint64(time.Now().UnixMilli())

	if a.Timestamps != nil {
		ts := *a.Timestamps
		if ts.Start != nil {
			start := maybeSecondsToMS(*ts.Start, nowMS)
			ts.Start = &start
		}
		if ts.End != nil {
			end := maybeSecondsToMS(*ts.End, nowMS)
			ts.End = &end
		}
		a.Timestamps = &ts
	}

	if a.Instance != nil && *a.Instance {
		flags := uint32(0)
		if a.Flags != nil {
			flags = *a.Flags
		}
		flags |= 1
		a.Flags = &flags
	}

	if a.Buttons != nil {
		labels := make([]string, len(a.Buttons))
		urls := make([]string, len(a.Buttons))
		for i, b := range a.Buttons {
			labels[i] = b.Label
			urls[i] = b.URL
		}
		if a.Extra == nil {
			a.Extra = make(map[string]json.RawMessage)
		}
		metaJSON, _ := json.Marshal(map[string]any{"button_urls": urls})
		a.Extra["metadata"] = metaJSON
		labelsJSON, _ := json.Marshal(labels)
		a.Extra["buttons"] = labelsJSON
		a.Buttons = nil
	}

	return a
}

func maybeSecondsToMS(v uint64, nowMS uint64) uint64 {
	if v < nowMS/100 {
		return v * 1000
	}
	return v
}
