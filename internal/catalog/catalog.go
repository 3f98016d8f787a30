// Package catalog loads the quest catalogue: a YAML file validated against an
// embedded JSON schema, with artefact templates expanded into concrete
// collectibles.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/playperu/heartlands/internal/geo"
	"github.com/playperu/heartlands/internal/heartlands"
	"github.com/playperu/heartlands/internal/prng"
	"github.com/playperu/heartlands/internal/spawn"
)

var ErrUnknownQuest = errors.New("unknown quest")

//go:embed default.yaml
var defaultCatalog []byte

//go:embed schema.json
var schema []byte

var schemaLoader = gojsonschema.NewBytesLoader(schema)

// Template describes a batch of collectibles scattered inside a bbox.
type Template struct {
	ID                     string    `yaml:"id"`
	Name                   string    `yaml:"name"`
	Blurb                  string    `yaml:"blurb"`
	Rarity                 string    `yaml:"rarity"`
	Points                 int       `yaml:"points"`
	Count                  int       `yaml:"count"`
	SearchRadiusMeters     float64   `yaml:"searchRadiusMeters"`
	CollectionRadiusMeters float64   `yaml:"collectionRadiusMeters"`
	BBox                   []float64 `yaml:"bbox"`
}

type artefactDoc struct {
	ID                     string         `yaml:"id"`
	Kind                   string         `yaml:"kind"`
	Name                   string         `yaml:"name"`
	Blurb                  string         `yaml:"blurb"`
	Anchor                 geo.Coordinate `yaml:"anchor"`
	SearchRadiusMeters     float64        `yaml:"searchRadiusMeters"`
	CollectionRadiusMeters float64        `yaml:"collectionRadiusMeters"`
	Points                 int            `yaml:"points"`
	Links                  []string       `yaml:"links"`
}

type questDoc struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	BBox        []float64     `yaml:"bbox"`
	Artefacts   []artefactDoc `yaml:"artefacts"`
	Templates   []Template    `yaml:"templates"`
}

type document struct {
	Quests []questDoc `yaml:"quests"`
}

// Catalog is an immutable set of expanded quests.
type Catalog struct {
	quests  []*heartlands.Quest
	byID    map[string]*heartlands.Quest
	indexes map[string]*Index
}

// Default returns the embedded catalogue.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads the catalogue at path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalogue: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse validates and expands a YAML catalogue.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing catalogue: %w", err)
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding catalogue: %w", err)
	}

	c := &Catalog{
		byID:    make(map[string]*heartlands.Quest, len(doc.Quests)),
		indexes: make(map[string]*Index, len(doc.Quests)),
	}
	for _, qd := range doc.Quests {
		q, err := buildQuest(qd)
		if err != nil {
			return nil, err
		}
		if _, dup := c.byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate quest id %q", q.ID)
		}
		c.quests = append(c.quests, q)
		c.byID[q.ID] = q
		c.indexes[q.ID] = NewIndex(q.Artefacts)
	}
	return c, nil
}

func validate(raw map[string]any) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("validating catalogue: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("catalogue does not match schema: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func buildQuest(qd questDoc) (*heartlands.Quest, error) {
	bbox, err := geo.BBoxFromSlice(qd.BBox)
	if err != nil {
		return nil, fmt.Errorf("quest %s: %w", qd.ID, err)
	}
	q := &heartlands.Quest{
		ID:          qd.ID,
		Name:        qd.Name,
		Description: qd.Description,
		BBox:        bbox,
	}
	for _, ad := range qd.Artefacts {
		q.Artefacts = append(q.Artefacts, heartlands.Artefact{
			ID:                     ad.ID,
			Kind:                   heartlands.Kind(ad.Kind),
			Name:                   ad.Name,
			Blurb:                  ad.Blurb,
			Anchor:                 ad.Anchor,
			SearchRadiusMeters:     ad.SearchRadiusMeters,
			CollectionRadiusMeters: ad.CollectionRadiusMeters,
			Points:                 ad.Points,
			Linked:                 ad.Links,
		})
	}
	for _, t := range qd.Templates {
		expanded, err := Expand(q.ID, bbox, t)
		if err != nil {
			return nil, fmt.Errorf("quest %s: %w", q.ID, err)
		}
		q.Artefacts = append(q.Artefacts, expanded...)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// Expand turns a template into Count collectibles with ids "{id}-{i}". The
// anchors depend only on the quest and template ids, so every player sees
// the same search circles.
func Expand(questID string, questBBox geo.BBox, t Template) ([]heartlands.Artefact, error) {
	bbox := questBBox
	if len(t.BBox) > 0 {
		b, err := geo.BBoxFromSlice(t.BBox)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", t.ID, err)
		}
		bbox = b
	}

	seed := prng.HashToSeed(questID) + prng.HashToSeed(t.ID)
	anchors := spawn.Scatter(bbox, t.Count, seed)

	out := make([]heartlands.Artefact, len(anchors))
	for i, anchor := range anchors {
		out[i] = heartlands.Artefact{
			ID:                     fmt.Sprintf("%s-%d", t.ID, i),
			Kind:                   heartlands.KindCollectible,
			Name:                   t.Name,
			Blurb:                  t.Blurb,
			Rarity:                 heartlands.Rarity(t.Rarity),
			Anchor:                 anchor,
			SearchRadiusMeters:     t.SearchRadiusMeters,
			CollectionRadiusMeters: t.CollectionRadiusMeters,
			Points:                 t.Points,
		}
	}
	return out, nil
}

// Quests returns the quests in catalogue order.
func (c *Catalog) Quests() []*heartlands.Quest {
	return c.quests
}

func (c *Catalog) Quest(id string) (*heartlands.Quest, error) {
	q, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuest, id)
	}
	return q, nil
}

// Index returns the spatial index over a quest's artefact anchors.
func (c *Catalog) Index(questID string) (*Index, error) {
	ix, ok := c.indexes[questID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuest, questID)
	}
	return ix, nil
}
