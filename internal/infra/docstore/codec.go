package docstore

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/infra"
	"pixelgrid/internal/pkg/errs"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaV2 string

var ErrCorruptDocument = errs.New("grid document failed validation")

// Codec translates between the stored JSON document and grid.Document. Timestamps are
// stored as epoch milliseconds. Version 1 documents are normalised on decode and always
// written back as version 2.
type Codec struct {
	schema *jsonschema.Schema
}

func NewCodec() (*Codec, error) {
	schema, err := jsonschema.CompileString("grid-document-v2.json", schemaV2)
	if err != nil {
		return nil, errs.Wrap(err, "compile grid document schema")
	}
	return &Codec{schema: schema}, nil
}

func MustCodec() *Codec {
	c, err := NewCodec()
	if err != nil {
		panic(err)
	}
	return c
}

type wireDocument struct {
	SchemaVersion int                   `json:"schemaVersion"`
	Sold          map[string]wireSale   `json:"sold"`
	Locks         map[string]wireLock   `json:"locks"`
	Regions       map[string]wireRegion `json:"regions"`
}

type wireSale struct {
	Name     string `json:"name,omitempty"`
	LinkURL  string `json:"linkUrl,omitempty"`
	SoldAt   int64  `json:"soldAt"`
	RegionID string `json:"regionId"`
}

type wireLock struct {
	Owner           string `json:"owner"`
	FirstAcquiredAt int64  `json:"firstAcquiredAt"`
	HardExpiry      int64  `json:"hardExpiry"`
	SoftExpiry      int64  `json:"softExpiry"`
	RegionID        string `json:"regionId,omitempty"`
}

type wireRegion struct {
	RegionID      string    `json:"regionId"`
	Rect          grid.Rect `json:"rect"`
	CellIndices   []int     `json:"cellIndices"`
	Owner         string    `json:"owner"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	Name          string    `json:"name,omitempty"`
	LinkURL       string    `json:"linkUrl,omitempty"`
	ReservedUntil *int64    `json:"reservedUntil,omitempty"`
	SoldAt        *int64    `json:"soldAt,omitempty"`
}

// Decode accepts an empty payload as the empty grid.
func (c *Codec) Decode(data []byte) (*grid.Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return grid.NewDocument(), nil
	}

	var header struct {
		SchemaVersion int `json:"schemaVersion"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, corrupt("parse document header", err)
	}

	var wire wireDocument
	switch header.SchemaVersion {
	case grid.SchemaVersion:
		if err := c.validate(data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, corrupt("parse v2 document", err)
		}
	case 0, 1:
		normalised, err := upgradeV1(data)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(normalised)
		if err != nil {
			return nil, corrupt("re-encode upgraded document", err)
		}
		if err := c.validate(encoded); err != nil {
			return nil, err
		}
		wire = *normalised
	default:
		return nil, corrupt("unsupported schema version "+strconv.Itoa(header.SchemaVersion), nil)
	}

	return fromWire(wire)
}

func (c *Codec) Encode(doc *grid.Document) ([]byte, error) {
	if doc == nil {
		doc = grid.NewDocument()
	}
	data, err := json.Marshal(toWire(doc))
	if err != nil {
		return nil, errs.Wrap(err, "encode grid document")
	}
	return data, nil
}

func (c *Codec) validate(data []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return corrupt("parse document for validation", err)
	}
	if err := c.schema.Validate(v); err != nil {
		return corrupt("validate document", err)
	}
	return nil
}

func toWire(doc *grid.Document) wireDocument {
	w := wireDocument{
		SchemaVersion: grid.SchemaVersion,
		Sold:          make(map[string]wireSale, len(doc.Sold)),
		Locks:         make(map[string]wireLock, len(doc.Locks)),
		Regions:       make(map[string]wireRegion, len(doc.Regions)),
	}
	for cell, s := range doc.Sold {
		w.Sold[strconv.Itoa(cell)] = wireSale{
			Name:     s.Name,
			LinkURL:  s.LinkURL,
			SoldAt:   s.SoldAt.UnixMilli(),
			RegionID: s.RegionID,
		}
	}
	for cell, l := range doc.Locks {
		w.Locks[strconv.Itoa(cell)] = wireLock{
			Owner:           l.Owner,
			FirstAcquiredAt: l.FirstAcquiredAt.UnixMilli(),
			HardExpiry:      l.HardExpiry.UnixMilli(),
			SoftExpiry:      l.SoftExpiry.UnixMilli(),
			RegionID:        l.RegionID,
		}
	}
	for id, r := range doc.Regions {
		w.Regions[id] = wireRegion{
			RegionID:      r.ID,
			Rect:          r.Rect,
			CellIndices:   r.CellIndices,
			Owner:         r.Owner,
			ImageURL:      r.ImageURL,
			Name:          r.Name,
			LinkURL:       r.LinkURL,
			ReservedUntil: optionalMillis(r.ReservedUntil),
			SoldAt:        optionalMillis(r.SoldAt),
		}
	}
	return w
}

func fromWire(w wireDocument) (*grid.Document, error) {
	doc := grid.NewDocument()
	for key, s := range w.Sold {
		cell, err := cellKey(key)
		if err != nil {
			return nil, err
		}
		doc.Sold[cell] = grid.Sale{
			Name:     s.Name,
			LinkURL:  s.LinkURL,
			SoldAt:   fromMillis(s.SoldAt),
			RegionID: s.RegionID,
		}
	}
	for key, l := range w.Locks {
		cell, err := cellKey(key)
		if err != nil {
			return nil, err
		}
		doc.Locks[cell] = grid.Lock{
			Owner:           l.Owner,
			FirstAcquiredAt: fromMillis(l.FirstAcquiredAt),
			HardExpiry:      fromMillis(l.HardExpiry),
			SoftExpiry:      fromMillis(min(l.SoftExpiry, l.HardExpiry)),
			RegionID:        l.RegionID,
		}
	}
	for id, r := range w.Regions {
		region := grid.Region{
			ID:          id,
			Rect:        r.Rect,
			CellIndices: r.CellIndices,
			Owner:       r.Owner,
			ImageURL:    r.ImageURL,
			Name:        r.Name,
			LinkURL:     r.LinkURL,
		}
		if r.ReservedUntil != nil {
			region.ReservedUntil = fromMillis(*r.ReservedUntil)
		}
		if r.SoldAt != nil {
			region.SoldAt = fromMillis(*r.SoldAt)
		}
		doc.Regions[id] = region
	}
	return doc, nil
}

func cellKey(key string) (int, error) {
	cell, err := strconv.Atoi(key)
	if err != nil || cell < 0 || cell >= grid.CellCount {
		return 0, corrupt("invalid cell key "+strconv.Quote(key), err)
	}
	return cell, nil
}

func optionalMillis(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// flexTime reads the timestamps of version 1 documents, which were either epoch
// milliseconds or RFC 3339 strings.
type flexTime int64

func (f *flexTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		*f = flexTime(t.UnixMilli())
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	ms, err := n.Int64()
	if err != nil {
		fl, ferr := n.Float64()
		if ferr != nil {
			return err
		}
		ms = int64(fl)
	}
	*f = flexTime(ms)
	return nil
}

type v1Document struct {
	Sold    map[string]v1Sale   `json:"sold"`
	Locks   map[string]v1Lock   `json:"locks"`
	Regions map[string]v1Region `json:"regions"`
}

type v1Sale struct {
	Name     string   `json:"name"`
	Link     string   `json:"link"`
	LinkURL  string   `json:"linkUrl"`
	SoldAt   flexTime `json:"soldAt"`
	Region   string   `json:"region"`
	RegionID string   `json:"regionId"`
}

type v1Lock struct {
	UID       string   `json:"uid"`
	Owner     string   `json:"owner"`
	ExpiresAt flexTime `json:"expiresAt"`
	Expires   flexTime `json:"expires"`
	Region    string   `json:"region"`
}

type v1Region struct {
	ID      string   `json:"id"`
	X       int      `json:"x"`
	Y       int      `json:"y"`
	W       int      `json:"w"`
	H       int      `json:"h"`
	Cells   []int    `json:"cells"`
	UID     string   `json:"uid"`
	Image   string   `json:"image"`
	Name    string   `json:"name"`
	Link    string   `json:"link"`
	Expires flexTime `json:"expires"`
	SoldAt  flexTime `json:"soldAt"`
}

// upgradeV1 maps the legacy layout onto version 2. Legacy locks carried a single expiry,
// which becomes both the soft and the hard expiry so that no lease outlives what the old
// record granted.
func upgradeV1(data []byte) (*wireDocument, error) {
	var v1 v1Document
	if err := json.Unmarshal(data, &v1); err != nil {
		return nil, corrupt("parse v1 document", err)
	}
	w := &wireDocument{
		SchemaVersion: grid.SchemaVersion,
		Sold:          make(map[string]wireSale, len(v1.Sold)),
		Locks:         make(map[string]wireLock, len(v1.Locks)),
		Regions:       make(map[string]wireRegion, len(v1.Regions)),
	}
	for key, s := range v1.Sold {
		w.Sold[key] = wireSale{
			Name:     s.Name,
			LinkURL:  firstNonEmpty(s.LinkURL, s.Link),
			SoldAt:   int64(s.SoldAt),
			RegionID: firstNonEmpty(s.RegionID, s.Region),
		}
	}
	for key, l := range v1.Locks {
		expiry := int64(l.ExpiresAt)
		if expiry == 0 {
			expiry = int64(l.Expires)
		}
		w.Locks[key] = wireLock{
			Owner:           firstNonEmpty(l.Owner, l.UID),
			FirstAcquiredAt: expiry,
			HardExpiry:      expiry,
			SoftExpiry:      expiry,
			RegionID:        l.Region,
		}
	}
	for key, r := range v1.Regions {
		id := firstNonEmpty(r.ID, key)
		region := wireRegion{
			RegionID:    id,
			Rect:        grid.Rect{X: r.X, Y: r.Y, W: r.W, H: r.H},
			CellIndices: r.Cells,
			Owner:       r.UID,
			ImageURL:    r.Image,
			Name:        r.Name,
			LinkURL:     r.Link,
		}
		if len(r.Cells) > 0 && (r.W == 0 || r.H == 0) {
			region.Rect = grid.BoundingBox(r.Cells)
		}
		if r.Expires != 0 {
			ms := int64(r.Expires)
			region.ReservedUntil = &ms
		}
		if r.SoldAt != 0 {
			ms := int64(r.SoldAt)
			region.SoldAt = &ms
		}
		w.Regions[id] = region
	}
	return w, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func corrupt(msg string, err error) error {
	if err == nil {
		err = errs.New(msg)
	}
	return errs.Mark(infra.WrapRepoErr(msg, err, infra.KindCorruptDocument), ErrCorruptDocument)
}
