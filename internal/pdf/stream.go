package pdf

// Stream is a dictionary plus an encoded payload. The filter chain is read
// from the /Filter and /DecodeParms entries of the dictionary.
type Stream struct {
	Dict Dict
	Data []byte

	decoded   []byte
	decodeErr error
	cached    bool
}

// NewStream returns a stream with the given dictionary and encoded payload.
// A nil dictionary is replaced by an empty one.
func NewStream(dict Dict, data []byte) *Stream {
	if dict == nil {
		dict = Dict{}
	}
	return &Stream{Dict: dict, Data: data}
}

// FilterSpec is one step of a stream's filter chain.
type FilterSpec struct {
	Name   Name
	Params Dict
}

// Filters returns the filter chain in decoding order.
func (s *Stream) Filters() []FilterSpec {
	var names []Name
	switch f := s.Dict.Get("Filter").(type) {
	case Name:
		names = []Name{f}
	case Array:
		for _, item := range f {
			if n, ok := item.(Name); ok {
				names = append(names, n)
			}
		}
	}

	var params []Dict
	switch p := s.Dict.Get("DecodeParms").(type) {
	case Dict:
		params = []Dict{p}
	case Array:
		for _, item := range p {
			d, _ := item.(Dict)
			params = append(params, d)
		}
	}

	chain := make([]FilterSpec, len(names))
	for i, n := range names {
		chain[i].Name = canonicalFilter(n)
		if i < len(params) {
			chain[i].Params = params[i]
		}
	}
	return chain
}

// Decode returns the payload with the filter chain applied. The result is
// computed once and cached until Replace is called. Image codecs end the
// chain: the bytes are returned still encoded by that codec.
func (s *Stream) Decode() ([]byte, error) {
	if s.cached {
		return s.decoded, s.decodeErr
	}
	s.decoded, s.decodeErr = decodeChain(s.Data, s.Filters())
	s.cached = true
	return s.decoded, s.decodeErr
}

// Replace sets a new decoded payload. The payload is re-encoded through the
// existing filter chain when every filter in it can be encoded; otherwise
// the filter entries are removed and the payload is stored as is.
func (s *Stream) Replace(decoded []byte) {
	if decoded == nil {
		decoded = []byte{}
	}
	chain := s.Filters()
	encoded, ok := encodeChain(decoded, chain)
	if !ok {
		s.Dict.Delete("Filter")
		s.Dict.Delete("DecodeParms")
		encoded = decoded
	}
	s.Dict.Delete("DL")
	s.Data = encoded
	s.decoded = decoded
	s.decodeErr = nil
	s.cached = true
}

// Clone returns a stream with a deep copy of the dictionary and the encoded
// payload. References inside the dictionary are copied as they are.
func (s *Stream) Clone() *Stream {
	data := make([]byte, len(s.Data))
	copy(data, s.Data)
	return &Stream{Dict: CloneValue(s.Dict).(Dict), Data: data}
}

// CloneValue returns a structural deep copy of v. References are kept.
func CloneValue(v Value) Value {
	switch t := v.(type) {
	case Array:
		out := make(Array, len(t))
		for i, item := range t {
			out[i] = CloneValue(item)
		}
		return out
	case Dict:
		out := make(Dict, len(t))
		for k, item := range t {
			out[k] = CloneValue(item)
		}
		return out
	case *Stream:
		if t == nil {
			return Null{}
		}
		return t.Clone()
	case Text:
		out := make(Text, len(t))
		copy(out, t)
		return out
	case nil:
		return Null{}
	default:
		return v
	}
}
