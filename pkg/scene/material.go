package scene

import (
	"encoding/xml"
	"fmt"
	"path/filepath"

	"github.com/Faultbox/meshpack/pkg/model"
)

// Render pass selection per material kind. The graphics pipeline names are
// what the engine ships with.
var materialPasses = map[model.MaterialKind]struct {
	name     string
	graphics string
}{
	model.MaterialOpaque:             {"Opaque", "DiffuseForwardOpaquePresent.graphics"},
	model.MaterialTransparent:        {"Transparent", "DiffuseForwardTransparentPresent.graphics"},
	model.MaterialSkinnedOpaque:      {"SkinOpaque", "DiffuseForwardSkinOpaquePresent.graphics"},
	model.MaterialSkinnedTransparent: {"SkinTransparent", "DiffuseForwardSkinTransparentPresent.graphics"},
}

// Default sampler parameters for every texture slot.
const (
	defaultMinFilter = "linear"
	defaultMagFilter = "linear"
	defaultWrap      = "repeat"
)

type materialDoc struct {
	XMLName xml.Name     `xml:"Material"`
	Pass    materialPass `xml:"Pass"`
}

type materialPass struct {
	Name     string            `xml:"name,attr"`
	Graphics string            `xml:"graphics,attr"`
	Textures []materialTexture `xml:"Texture2D"`
}

type materialTexture struct {
	Name      string `xml:"name,attr"`
	Value     string `xml:"value,attr"`
	MinFilter string `xml:"minFilter,attr"`
	MagFilter string `xml:"magFilter,attr"`
	Wrap      string `xml:"wrap,attr"`
}

// ExportMaterial writes one material description document. Each set texture
// slot becomes a Texture2D entry naming the slot semantic and the referenced
// texture's base filename.
func ExportMaterial(path string, mat *model.Material, m *model.Model) error {
	doc, err := buildMaterial(mat, m)
	if err != nil {
		return err
	}
	return writeXML(path, doc)
}

func buildMaterial(mat *model.Material, m *model.Model) (*materialDoc, error) {
	pass, ok := materialPasses[mat.Kind]
	if !ok {
		return nil, fmt.Errorf("material %q: unknown kind %d", mat.Name, mat.Kind)
	}

	doc := &materialDoc{Pass: materialPass{Name: pass.name, Graphics: pass.graphics}}
	for slot := model.TextureUsage(0); slot < model.TextureUsageCount; slot++ {
		tex := mat.Textures[slot]
		if tex == model.NoID {
			continue
		}
		if tex < 0 || int(tex) >= len(m.Textures) {
			return nil, fmt.Errorf("material %q slot %s: %w: texture %d",
				mat.Name, slot, model.ErrDanglingTexture, tex)
		}
		doc.Pass.Textures = append(doc.Pass.Textures, materialTexture{
			Name:      slot.String(),
			Value:     filepath.Base(m.Textures[tex].FileName),
			MinFilter: defaultMinFilter,
			MagFilter: defaultMagFilter,
			Wrap:      defaultWrap,
		})
	}
	return doc, nil
}
