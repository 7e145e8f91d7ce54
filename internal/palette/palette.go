// Package palette maps class indices to colours and formats legend labels.
package palette

import (
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DefaultMissing is the fill used for observations without a class.
const DefaultMissing = "#cccccc"

// Kind describes how a ramp is stretched to k classes.
type Kind string

// Ramp kinds.
const (
	Sequential  Kind = "sequential"
	Qualitative Kind = "qualitative"
)

// Ramp is a named list of anchor colours.
type Ramp struct {
	Name    string   `yaml:"-"`
	Kind    Kind     `yaml:"kind"`
	Colors  []string `yaml:"colors"`
	Missing string   `yaml:"missing,omitempty"`
}

// Palette is a ramp resolved to a fixed number of classes.
type Palette struct {
	Name    string   `json:"name"`
	Colors  []string `json:"colors"`
	Missing string   `json:"missing"`
}

// Color returns the fill for a class; out-of-range classes (including -1) get the missing colour.
func (p Palette) Color(class int) string {
	if class < 0 || class >= len(p.Colors) {
		return p.Missing
	}
	return p.Colors[class]
}

// ColorBrewer 9-class ramps, light to dark, plus the 12-colour Set3 qualitative set.
var builtins = map[string]Ramp{
	"YlOrRd":  {Kind: Sequential, Colors: []string{"#ffffcc", "#ffeda0", "#fed976", "#feb24c", "#fd8d3c", "#fc4e2a", "#e31a1c", "#bd0026", "#800026"}},
	"YlGnBu":  {Kind: Sequential, Colors: []string{"#ffffd9", "#edf8b1", "#c7e9b4", "#7fcdbb", "#41b6c4", "#1d91c0", "#225ea8", "#253494", "#081d58"}},
	"OrRd":    {Kind: Sequential, Colors: []string{"#fff7ec", "#fee8c8", "#fdd49e", "#fdbb84", "#fc8d59", "#ef6548", "#d7301f", "#b30000", "#7f0000"}},
	"Blues":   {Kind: Sequential, Colors: []string{"#f7fbff", "#deebf7", "#c6dbef", "#9ecae1", "#6baed6", "#4292c6", "#2171b5", "#08519c", "#08306b"}},
	"Greens":  {Kind: Sequential, Colors: []string{"#f7fcf5", "#e5f5e0", "#c7e9c0", "#a1d99b", "#74c476", "#41ab5d", "#238b45", "#006d2c", "#00441b"}},
	"Reds":    {Kind: Sequential, Colors: []string{"#fff5f0", "#fee0d2", "#fcbba1", "#fc9272", "#fb6a4a", "#ef3b2c", "#cb181d", "#a50f15", "#67000d"}},
	"Purples": {Kind: Sequential, Colors: []string{"#fcfbfd", "#efedf5", "#dadaeb", "#bcbddc", "#9e9ac8", "#807dba", "#6a51a3", "#54278f", "#3f007d"}},
	"Greys":   {Kind: Sequential, Colors: []string{"#ffffff", "#f0f0f0", "#d9d9d9", "#bdbdbd", "#969696", "#737373", "#525252", "#252525", "#000000"}},
	"Set3":    {Kind: Qualitative, Colors: []string{"#8dd3c7", "#ffffb3", "#bebada", "#fb8072", "#80b1d3", "#fdb462", "#b3de69", "#fccde5", "#d9d9d9", "#bc80bd", "#ccebc5", "#ffed6f"}},
}

// Registry resolves palette names. The zero value is not usable; call NewRegistry.
type Registry struct {
	mu    sync.RWMutex
	ramps map[string]Ramp
}

// NewRegistry returns a registry preloaded with the built-in ramps.
func NewRegistry() *Registry {
	r := &Registry{ramps: make(map[string]Ramp, len(builtins))}
	for name, ramp := range builtins {
		ramp.Name = name
		r.ramps[strings.ToLower(name)] = ramp
	}
	return r
}

var defaultRegistry = NewRegistry()

// Get resolves a built-in palette for k classes.
func Get(name string, k int) (Palette, error) {
	return defaultRegistry.Get(name, k)
}

// Exists reports whether name is a built-in palette.
func Exists(name string) bool {
	return defaultRegistry.Exists(name)
}

// Names lists the built-in palettes.
func Names() []string {
	return defaultRegistry.Names()
}

// Exists reports whether the registry knows name.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ramps[strings.ToLower(name)]
	return ok
}

// Names returns the registered palette names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ramps))
	for _, ramp := range r.ramps {
		names = append(names, ramp.Name)
	}
	sort.Strings(names)
	return names
}

// Get stretches the named ramp to k colours. Sequential ramps are resampled evenly in CIE
// L*a*b*; qualitative ramps are used in order and extended with evenly spaced HCL hues.
func (r *Registry) Get(name string, k int) (Palette, error) {
	if k < 1 {
		return Palette{}, eris.Errorf("palette: k must be >= 1, got %d", k)
	}
	r.mu.RLock()
	ramp, ok := r.ramps[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return Palette{}, eris.Errorf("palette: unknown palette %q", name)
	}

	anchors, err := parseColors(ramp.Colors)
	if err != nil {
		return Palette{}, eris.Wrapf(err, "palette: %s", ramp.Name)
	}

	var colors []string
	if ramp.Kind == Qualitative {
		colors = qualitative(anchors, k)
	} else {
		colors = resample(anchors, k)
	}

	missing := ramp.Missing
	if missing == "" {
		missing = DefaultMissing
	}
	return Palette{Name: ramp.Name, Colors: colors, Missing: missing}, nil
}

// LoadFile registers the ramps in a YAML file of the form:
//
//	palettes:
//	  Corporate:
//	    kind: sequential
//	    colors: ["#f1eef6", "#bdc9e1", "#74a9cf", "#0570b0"]
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "palette: read %s", path)
	}
	var file struct {
		Palettes map[string]Ramp `yaml:"palettes"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return eris.Wrapf(err, "palette: parse %s", path)
	}
	if len(file.Palettes) == 0 {
		return eris.Errorf("palette: %s defines no palettes", path)
	}

	loaded := make(map[string]Ramp, len(file.Palettes))
	for name, ramp := range file.Palettes {
		ramp.Name = name
		if ramp.Kind == "" {
			ramp.Kind = Sequential
		}
		if ramp.Kind != Sequential && ramp.Kind != Qualitative {
			return eris.Errorf("palette: %s: unknown kind %q", name, ramp.Kind)
		}
		if len(ramp.Colors) == 0 {
			return eris.Errorf("palette: %s: no colors", name)
		}
		if _, err := parseColors(ramp.Colors); err != nil {
			return eris.Wrapf(err, "palette: %s", name)
		}
		if ramp.Missing != "" {
			if _, err := colorful.Hex(ramp.Missing); err != nil {
				return eris.Wrapf(err, "palette: %s: missing color", name)
			}
		}
		loaded[strings.ToLower(name)] = ramp
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, ramp := range loaded {
		r.ramps[key] = ramp
	}
	return nil
}

func parseColors(hex []string) ([]colorful.Color, error) {
	out := make([]colorful.Color, len(hex))
	for i, h := range hex {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, eris.Wrapf(err, "bad color %q", h)
		}
		out[i] = c
	}
	return out, nil
}

func resample(anchors []colorful.Color, k int) []string {
	out := make([]string, k)
	if len(anchors) == 1 {
		for i := range out {
			out[i] = anchors[0].Hex()
		}
		return out
	}
	last := float64(len(anchors) - 1)
	for i := range out {
		// A single class takes the middle of the ramp.
		pos := last / 2
		if k > 1 {
			pos = float64(i) * last / float64(k-1)
		}
		lo := int(math.Floor(pos))
		if lo >= len(anchors)-1 {
			lo = len(anchors) - 2
		}
		t := pos - float64(lo)
		switch {
		case t < 1e-9:
			out[i] = anchors[lo].Hex()
		case t > 1-1e-9:
			out[i] = anchors[lo+1].Hex()
		default:
			out[i] = anchors[lo].BlendLab(anchors[lo+1], t).Clamped().Hex()
		}
	}
	return out
}

func qualitative(anchors []colorful.Color, k int) []string {
	out := make([]string, 0, k)
	for i := 0; i < k && i < len(anchors); i++ {
		out = append(out, anchors[i].Hex())
	}
	extra := k - len(out)
	for i := 0; i < extra; i++ {
		h := 360 * float64(i) / float64(extra)
		out = append(out, colorful.Hcl(h, 0.45, 0.75).Clamped().Hex())
	}
	return out
}
