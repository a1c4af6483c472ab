package pdf

import (
	"encoding/hex"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// importObject converts an object loaded by pdfcpu into a Value. The
// boolean is false for objects that have no place in the graph, such as
// object stream and cross-reference stream containers.
func importObject(o types.Object) (Value, bool) {
	switch t := o.(type) {
	case types.StreamDict:
		return importStream(t)
	case *types.StreamDict:
		if t == nil {
			return Null{}, true
		}
		return importStream(*t)
	case types.ObjectStreamDict, *types.ObjectStreamDict, types.XRefStreamDict, *types.XRefStreamDict:
		return nil, false
	}
	return importValue(o), true
}

func importStream(sd types.StreamDict) (Value, bool) {
	dict, _ := importValue(sd.Dict).(Dict)
	if typ, _ := dict.NameValue("Type"); typ == "ObjStm" || typ == "XRef" {
		return nil, false
	}
	data := sd.Raw
	if data == nil && sd.Content != nil {
		data = sd.Content
		delete(dict, "Filter")
		delete(dict, "DecodeParms")
	}
	return NewStream(dict, data), true
}

func importValue(o types.Object) Value {
	switch t := o.(type) {
	case nil:
		return Null{}
	case types.Boolean:
		return Bool(t)
	case types.Integer:
		return Number(t)
	case types.Float:
		return Number(t)
	case types.Name:
		return Name(t)
	case types.StringLiteral:
		b, err := types.Unescape(string(t))
		if err != nil {
			return Text(t)
		}
		return Text(b)
	case types.HexLiteral:
		b, err := t.Bytes()
		if err != nil {
			return Text(nil)
		}
		return Text(b)
	case types.IndirectRef:
		return Ref{Num: int(t.ObjectNumber), Gen: int(t.GenerationNumber)}
	case *types.IndirectRef:
		if t == nil {
			return Null{}
		}
		return Ref{Num: int(t.ObjectNumber), Gen: int(t.GenerationNumber)}
	case types.Array:
		arr := make(Array, len(t))
		for i, item := range t {
			arr[i] = importValue(item)
		}
		return arr
	case types.Dict:
		d := make(Dict, len(t))
		for k, item := range t {
			d[Name(k)] = importValue(item)
		}
		return d
	case types.StreamDict:
		// Streams are only valid as indirect objects; a nested one keeps
		// its dictionary.
		return importValue(t.Dict)
	}
	return Null{}
}

// exportObject converts the value of an indirect object for pdfcpu.
func exportObject(v Value) (types.Object, error) {
	if s, ok := v.(*Stream); ok {
		return exportStream(s)
	}
	return exportValue(v)
}

func exportStream(s *Stream) (types.Object, error) {
	d, err := exportDict(s.Dict)
	if err != nil {
		return nil, err
	}
	n := int64(len(s.Data))
	d["Length"] = types.Integer(n)

	sd := types.StreamDict{
		Dict:         d,
		StreamLength: &n,
		Raw:          s.Data,
	}
	for _, f := range s.Filters() {
		pf := types.PDFFilter{Name: string(f.Name)}
		if f.Params != nil {
			if pf.DecodeParms, err = exportDict(f.Params); err != nil {
				return nil, err
			}
		}
		sd.FilterPipeline = append(sd.FilterPipeline, pf)
	}
	return sd, nil
}

func exportValue(v Value) (types.Object, error) {
	switch t := v.(type) {
	case nil, Null:
		return nil, nil
	case Bool:
		return types.Boolean(t), nil
	case Number:
		if t.IsInteger() {
			return types.Integer(t.Int()), nil
		}
		return types.Float(t), nil
	case Text:
		return types.HexLiteral(hex.EncodeToString(t)), nil
	case Name:
		return types.Name(t), nil
	case Ref:
		return types.IndirectRef{ObjectNumber: types.Integer(t.Num), GenerationNumber: types.Integer(t.Gen)}, nil
	case Array:
		arr := make(types.Array, len(t))
		for i, item := range t {
			o, err := exportValue(item)
			if err != nil {
				return nil, err
			}
			arr[i] = o
		}
		return arr, nil
	case Dict:
		return exportDict(t)
	case *Stream:
		return nil, ErrDirectStream
	}
	return nil, nil
}

// exportDict drops null entries, which PDF treats as absent keys.
func exportDict(d Dict) (types.Dict, error) {
	out := make(types.Dict, len(d))
	for k, item := range d {
		if IsNull(item) {
			continue
		}
		o, err := exportValue(item)
		if err != nil {
			return nil, err
		}
		out[string(k)] = o
	}
	return out, nil
}

// Format returns the PDF syntax of the value of an indirect object.
// Dictionary keys are written in sorted order so the output is stable.
func Format(v Value) (string, error) {
	s, ok := v.(*Stream)
	if !ok {
		return formatValue(v)
	}
	dict, _ := CloneValue(s.Dict).(Dict)
	if dict == nil {
		dict = Dict{}
	}
	dict["Length"] = Number(len(s.Data))
	head, err := formatValue(dict)
	if err != nil {
		return "", err
	}
	return head + "\nstream\n" + string(s.Data) + "\nendstream", nil
}

func formatValue(v Value) (string, error) {
	switch t := v.(type) {
	case Array:
		s := "["
		for i, item := range t {
			if i > 0 {
				s += " "
			}
			f, err := formatValue(item)
			if err != nil {
				return "", err
			}
			s += f
		}
		return s + "]", nil
	case Dict:
		s := "<<"
		for _, k := range t.Keys() {
			f, err := formatValue(t[k])
			if err != nil {
				return "", err
			}
			s += types.Name(k).PDFString() + " " + f
		}
		return s + ">>", nil
	}

	o, err := exportValue(v)
	if err != nil {
		return "", err
	}
	if o == nil {
		return "null", nil
	}
	return o.PDFString(), nil
}
