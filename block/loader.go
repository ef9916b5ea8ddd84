package block

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zip"
)

// Primitive type tags of the compressed input encoding.
const (
	primMathNumber     = 4
	primPositiveNumber = 5
	primWholeNumber    = 6
	primInteger        = 7
	primAngle          = 8
	primColor          = 9
	primText           = 10
	primBroadcast      = 11
	primVariable       = 12
	primList           = 13
)

type rawProject struct {
	Targets []rawTarget `json:"targets"`
}

type rawTarget struct {
	IsStage    bool                         `json:"isStage"`
	Name       string                       `json:"name"`
	Variables  map[string][]json.RawMessage `json:"variables"`
	Lists      map[string][]json.RawMessage `json:"lists"`
	Broadcasts map[string]string            `json:"broadcasts"`
	Blocks     map[string]json.RawMessage   `json:"blocks"`
	X          float64                      `json:"x"`
	Y          float64                      `json:"y"`
	Direction  *float64                     `json:"direction"`
}

type rawBlock struct {
	Opcode   string                       `json:"opcode"`
	Next     *string                      `json:"next"`
	Parent   *string                      `json:"parent"`
	Inputs   map[string][]json.RawMessage `json:"inputs"`
	Fields   map[string][]json.RawMessage `json:"fields"`
	Shadow   bool                         `json:"shadow"`
	TopLevel bool                         `json:"topLevel"`
	Mutation map[string]interface{}       `json:"mutation"`
}

// LoadProject loads a project from a project.json file or an .sb3 archive,
// chosen by file extension.
func LoadProject(path string) (*Project, error) {
	if strings.EqualFold(filepath.Ext(path), ".sb3") {
		return LoadSB3(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	p, err := ParseProjectJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return p, nil
}

// LoadSB3 loads the project.json stored inside an .sb3 archive.
func LoadSB3(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	p, err := ReadSB3(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ReadSB3 reads an .sb3 archive from r.
func ReadSB3(r io.ReaderAt, size int64) (*Project, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("sb3: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "project.json" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("sb3: open project.json: %w", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("sb3: read project.json: %w", err)
		}
		return ParseProjectJSON(data)
	}
	return nil, fmt.Errorf("sb3: archive has no project.json")
}

// ReadProject decodes either an .sb3 archive or project.json text,
// recognizing archives by their zip signature.
func ReadProject(data []byte) (*Project, error) {
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return ReadSB3(bytes.NewReader(data), int64(len(data)))
	}
	return ParseProjectJSON(data)
}

// ParseProjectJSON decodes a Scratch 3 project.json document.
func ParseProjectJSON(data []byte) (*Project, error) {
	var raw rawProject
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	p := &Project{}
	for i := range raw.Targets {
		t, err := convertTarget(&raw.Targets[i])
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", raw.Targets[i].Name, err)
		}
		p.Targets = append(p.Targets, t)
	}
	return p, nil
}

func convertTarget(rt *rawTarget) (*Target, error) {
	t := NewTarget(rt.Name, rt.IsStage)
	t.X, t.Y = rt.X, rt.Y
	if rt.Direction != nil {
		t.Direction = *rt.Direction
	}

	for id, pair := range rt.Variables {
		if len(pair) < 2 {
			return nil, fmt.Errorf("variable %s: want [name, value]", id)
		}
		v := &Variable{ID: id}
		if err := json.Unmarshal(pair[0], &v.Name); err != nil {
			return nil, fmt.Errorf("variable %s name: %w", id, err)
		}
		lit, err := decodeLiteral(pair[1])
		if err != nil {
			return nil, fmt.Errorf("variable %s value: %w", id, err)
		}
		v.Value = lit
		t.Variables[id] = v
	}

	for id, pair := range rt.Lists {
		if len(pair) < 2 {
			return nil, fmt.Errorf("list %s: want [name, items]", id)
		}
		l := &List{ID: id}
		if err := json.Unmarshal(pair[0], &l.Name); err != nil {
			return nil, fmt.Errorf("list %s name: %w", id, err)
		}
		var items []json.RawMessage
		if err := json.Unmarshal(pair[1], &items); err != nil {
			return nil, fmt.Errorf("list %s items: %w", id, err)
		}
		l.Value = make([]interface{}, 0, len(items))
		for _, item := range items {
			lit, err := decodeLiteral(item)
			if err != nil {
				return nil, fmt.Errorf("list %s item: %w", id, err)
			}
			l.Value = append(l.Value, lit)
		}
		t.Lists[id] = l
	}

	for id, name := range rt.Broadcasts {
		t.Broadcasts[id] = name
	}

	// Map iteration order is random; insert blocks sorted so that
	// TopLevel and Blocks are deterministic.
	ids := make([]string, 0, len(rt.Blocks))
	for id := range rt.Blocks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		b, err := convertBlock(id, rt.Blocks[id])
		if err != nil {
			return nil, fmt.Errorf("block %s: %w", id, err)
		}
		if b != nil {
			t.Blocks.Add(b)
		}
	}
	return t, nil
}

func convertBlock(id string, data json.RawMessage) (*Block, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return convertTopLevelPrimitive(id, trimmed)
	}

	var rb rawBlock
	if err := json.Unmarshal(data, &rb); err != nil {
		return nil, err
	}
	b := &Block{
		ID:       id,
		Opcode:   rb.Opcode,
		TopLevel: rb.TopLevel,
		Shadow:   rb.Shadow,
		Inputs:   make(map[string]*Input),
		Fields:   make(map[string]*Field),
		Branches: make(map[string]string),
	}
	if rb.Next != nil {
		b.Next = *rb.Next
	}
	if rb.Parent != nil {
		b.Parent = *rb.Parent
	}

	for name, arr := range rb.Inputs {
		if err := convertInput(b, name, arr); err != nil {
			return nil, fmt.Errorf("input %s: %w", name, err)
		}
	}

	for name, arr := range rb.Fields {
		if len(arr) == 0 {
			continue
		}
		f := &Field{Name: name}
		lit, err := decodeLiteral(arr[0])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		f.Value = literalString(lit)
		if len(arr) > 1 {
			var fid *string
			if err := json.Unmarshal(arr[1], &fid); err == nil && fid != nil {
				f.ID = *fid
			}
		}
		b.Fields[name] = f
	}

	if len(rb.Mutation) > 0 {
		b.Mutation = make(map[string]string, len(rb.Mutation))
		for k, v := range rb.Mutation {
			b.Mutation[k] = literalString(v)
		}
	}
	return b, nil
}

// convertTopLevelPrimitive handles variable and list reporters dropped
// directly on the workspace, which are stored as bare arrays.
func convertTopLevelPrimitive(id string, data []byte) (*Block, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, err
	}
	if len(arr) < 3 {
		return nil, fmt.Errorf("short top-level primitive")
	}
	var tag int
	if err := json.Unmarshal(arr[0], &tag); err != nil {
		return nil, fmt.Errorf("primitive tag: %w", err)
	}
	var name, refID string
	if err := json.Unmarshal(arr[1], &name); err != nil {
		return nil, fmt.Errorf("primitive name: %w", err)
	}
	if err := json.Unmarshal(arr[2], &refID); err != nil {
		return nil, fmt.Errorf("primitive id: %w", err)
	}

	b := &Block{ID: id, TopLevel: true, Fields: make(map[string]*Field)}
	switch tag {
	case primVariable:
		b.Opcode = "data_variable"
		b.Fields["VARIABLE"] = &Field{Name: "VARIABLE", Value: name, ID: refID}
	case primList:
		b.Opcode = "data_listcontents"
		b.Fields["LIST"] = &Field{Name: "LIST", Value: name, ID: refID}
	default:
		return nil, fmt.Errorf("unexpected top-level primitive %d", tag)
	}
	return b, nil
}

// convertInput decodes [shadowType, value, obscuredShadow?]. The value is a
// block id, null, or a primitive array.
func convertInput(b *Block, name string, arr []json.RawMessage) error {
	if len(arr) < 2 {
		return fmt.Errorf("want [shadow, value]")
	}
	val := bytes.TrimSpace(arr[1])
	if len(val) == 0 || bytes.Equal(val, []byte("null")) {
		return nil
	}

	if val[0] == '"' {
		var ref string
		if err := json.Unmarshal(val, &ref); err != nil {
			return err
		}
		if IsBranchName(name) {
			b.Branches[name] = ref
			return nil
		}
		b.Inputs[name] = &Input{Name: name, Kind: InputBlock, BlockID: ref}
		return nil
	}

	in, err := decodePrimitive(val)
	if err != nil {
		return err
	}
	in.Name = name
	b.Inputs[name] = in
	return nil
}

func decodePrimitive(data []byte) (*Input, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, err
	}
	if len(arr) < 2 {
		return nil, fmt.Errorf("short primitive")
	}
	var tag int
	if err := json.Unmarshal(arr[0], &tag); err != nil {
		return nil, fmt.Errorf("primitive tag: %w", err)
	}

	switch tag {
	case primMathNumber, primPositiveNumber, primWholeNumber, primInteger, primAngle, primColor, primText:
		lit, err := decodeLiteral(arr[1])
		if err != nil {
			return nil, err
		}
		return &Input{Kind: InputLiteral, Literal: lit}, nil
	case primBroadcast:
		var name string
		if err := json.Unmarshal(arr[1], &name); err != nil {
			return nil, fmt.Errorf("broadcast name: %w", err)
		}
		return &Input{Kind: InputLiteral, Literal: name}, nil
	case primVariable, primList:
		if len(arr) < 3 {
			return nil, fmt.Errorf("short reference primitive")
		}
		in := &Input{Kind: InputVariable}
		if tag == primList {
			in.Kind = InputList
		}
		if err := json.Unmarshal(arr[1], &in.RefName); err != nil {
			return nil, fmt.Errorf("reference name: %w", err)
		}
		if err := json.Unmarshal(arr[2], &in.RefID); err != nil {
			return nil, fmt.Errorf("reference id: %w", err)
		}
		return in, nil
	default:
		return nil, fmt.Errorf("unknown primitive type %d", tag)
	}
}

// decodeLiteral decodes a JSON scalar into float64, string, bool or nil.
func decodeLiteral(data json.RawMessage) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	switch v.(type) {
	case nil, float64, string, bool:
		return v, nil
	default:
		return nil, fmt.Errorf("expected scalar, got %T", v)
	}
}

func literalString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
