package pdf

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var configOnce sync.Once

// configuration returns the pdfcpu configuration shared by the reader and
// the writer. pdfcpu's own config directory is never created.
func configuration() *model.Configuration {
	configOnce.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

// Open reads and parses the PDF file at path.
func Open(path string, opts ...Option) (*Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // caller-provided input path
	if err != nil {
		return nil, err
	}
	return Parse(data, opts...)
}

// Parse parses an in-memory PDF file. Cross-reference tables and streams,
// object streams and incremental updates are handled by pdfcpu; the loaded
// objects are then converted into the document's object table.
func Parse(data []byte, opts ...Option) (*Document, error) {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, []byte("%PDF-")) {
		return nil, ErrNotPDF
	}

	ctx, err := api.ReadContext(bytes.NewReader(data), configuration())
	if err != nil {
		if bytes.Contains(data, []byte("/Encrypt")) {
			return nil, fmt.Errorf("%w: %v", ErrEncrypted, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	doc := New(opts...)
	if ctx.HeaderVersion != nil {
		doc.Version = ctx.HeaderVersion.String()
	}
	load(ctx, doc)
	recoverPayloads(ctx, doc)

	if ctx.Info != nil {
		doc.trailer["Info"] = importValue(*ctx.Info)
	}
	if ctx.ID != nil {
		doc.trailer["ID"] = importValue(ctx.ID)
	}
	if ctx.Root == nil {
		return nil, ErrNoCatalog
	}
	root, _ := importValue(*ctx.Root).(Ref)
	if d, ok := doc.ResolveDict(root); !ok || d == nil {
		return nil, ErrNoCatalog
	}
	doc.SetCatalog(root)
	return doc, nil
}

// load copies every in-use object of the cross-reference table into doc.
func load(ctx *model.Context, doc *Document) {
	nums := make([]int, 0, len(ctx.Table))
	for num, entry := range ctx.Table {
		if num == 0 || entry == nil || entry.Free {
			continue
		}
		nums = append(nums, num)
	}
	sort.Ints(nums)

	for _, num := range nums {
		entry := ctx.Table[num]
		gen := 0
		if entry.Generation != nil {
			gen = *entry.Generation
		}
		id := ObjectID{Num: num, Gen: gen}

		o, err := ctx.Dereference(types.IndirectRef{
			ObjectNumber:     types.Integer(num),
			GenerationNumber: types.Integer(gen),
		})
		if err != nil {
			doc.logger.Warn("object unreadable, skipped", "object", id.String(), "error", err)
			continue
		}
		v, ok := importObject(o)
		if !ok {
			continue
		}
		doc.Set(id, v)
		if entry.Compressed && entry.ObjectStream != nil {
			doc.MarkCompressed(id, ObjectID{Num: *entry.ObjectStream})
		}
	}
}

// recoverPayloads looks at dictionaries stored in object streams. Object
// streams cannot hold streams, so when a member's body is a dictionary
// followed by stream data pdfcpu keeps only the dictionary. The bytes are
// cut out of the decoded container and kept beside the dictionary.
func recoverPayloads(ctx *model.Context, doc *Document) {
	members := make(map[int][]int)
	for id, container := range doc.compressed {
		if v, ok := doc.objects[id].(Dict); ok && v != nil {
			members[container.Num] = append(members[container.Num], id.Num)
		}
	}

	for container, nums := range members {
		bodies, err := containerBodies(ctx, container)
		if err != nil {
			doc.logger.Debug("object stream unreadable", "object", ObjectID{Num: container}.String(), "error", err)
			continue
		}
		for _, num := range nums {
			if payload, ok := trailingPayload(bodies[num]); ok {
				doc.SetDetachedPayload(ObjectID{Num: num}, payload)
			}
		}
	}
}

// containerBodies decodes an object stream and splits it into member
// bodies keyed by object number.
func containerBodies(ctx *model.Context, num int) (map[int][]byte, error) {
	o, err := ctx.Dereference(types.IndirectRef{ObjectNumber: types.Integer(num)})
	if err != nil {
		return nil, err
	}
	var sd types.StreamDict
	switch t := o.(type) {
	case types.ObjectStreamDict:
		sd = t.StreamDict
	case *types.ObjectStreamDict:
		sd = t.StreamDict
	case types.StreamDict:
		sd = t
	default:
		return nil, fmt.Errorf("%w: object %d is not an object stream", ErrMalformed, num)
	}
	dict, _ := importValue(sd.Dict).(Dict)
	content := sd.Content
	if sd.Raw != nil || content == nil {
		if content, err = NewStream(dict, sd.Raw).Decode(); err != nil {
			return nil, err
		}
	}
	first, ok := dict.IntValue("First")
	if !ok || first < 0 || first > len(content) {
		return nil, fmt.Errorf("%w: object stream %d has invalid First", ErrMalformed, num)
	}

	fields := bytes.Fields(content[:first])
	type member struct{ num, off int }
	var list []member
	for i := 0; i+1 < len(fields); i += 2 {
		n, err1 := strconv.Atoi(string(fields[i]))
		off, err2 := strconv.Atoi(string(fields[i+1]))
		if err1 != nil || err2 != nil || off < 0 || first+off > len(content) {
			continue
		}
		list = append(list, member{num: n, off: first + off})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].off < list[j].off })

	bodies := make(map[int][]byte, len(list))
	for i, m := range list {
		end := len(content)
		if i+1 < len(list) {
			end = list[i+1].off
		}
		bodies[m.num] = content[m.off:end]
	}
	return bodies, nil
}

// trailingPayload returns the bytes between the stream and endstream
// keywords of body.
func trailingPayload(body []byte) ([]byte, bool) {
	start := bytes.Index(body, []byte("stream"))
	end := bytes.LastIndex(body, []byte("endstream"))
	if start < 0 || end <= start {
		return nil, false
	}
	if !bytes.HasSuffix(bytes.TrimRight(body[:start], " \t\r\n\f\x00"), []byte(">>")) {
		return nil, false
	}
	payload := body[start+len("stream") : end]
	switch {
	case bytes.HasPrefix(payload, []byte("\r\n")):
		payload = payload[2:]
	case bytes.HasPrefix(payload, []byte("\n")), bytes.HasPrefix(payload, []byte("\r")):
		payload = payload[1:]
	}
	payload = bytes.TrimSuffix(payload, []byte("\n"))
	payload = bytes.TrimSuffix(payload, []byte("\r"))
	return payload, true
}
