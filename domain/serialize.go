package domain

// Carrier moves a wrapper together with its aux data across a boundary that only
// understands plain records.
type Carrier struct {
	Data Record `json:"data"`
	Aux  Record `json:"aux,omitempty"`
	Type string `json:"type"`
}

// ToJSON returns a shallow, field-filtered view of the record. An empty include list
// keeps every field; exclude is applied afterwards.
func (o *Object) ToJSON(include, exclude []string) map[string]any {
	out := make(map[string]any, len(o.rec))
	if len(include) == 0 {
		for k, v := range o.rec {
			out[k] = v
		}
	} else {
		for _, k := range include {
			if v, ok := o.rec[k]; ok {
				out[k] = v
			}
		}
	}
	for _, k := range exclude {
		delete(out, k)
	}
	return out
}

// Serialize packs the record and aux data into a Carrier.
func (o *Object) Serialize() Carrier {
	return Carrier{
		Data: o.rec,
		Aux:  o.aux,
		Type: o.TypeTag(),
	}
}

// Deserialize rebuilds a wrapper from a Carrier and restores its aux data.
func (r *Registry) Deserialize(c Carrier, fallback Factory) (Wrapper, bool) {
	if !r.assert.NotNil("carrier data", c.Data) {
		return nil, false
	}
	if c.Data.TypeTag() == "" && c.Type != "" {
		c.Data[FieldType] = c.Type
	}
	w, ok := r.Wrap(c.Data, fallback)
	if !ok {
		return nil, false
	}
	if c.Aux != nil {
		w.Base().SetAuxData(c.Aux)
	}
	return w, true
}
