package tier

// Variants maps each available tier to the URL of that variant.
type Variants map[Tier]string

// Kind tags which shape a Source has.
type Kind uint8

const (
	// KindSingle is a one-sided entity with one set of variants.
	KindSingle Kind = iota
	// KindMultiFace is an entity with several faces (e.g. card front/back),
	// each carrying its own variants.
	KindMultiFace
)

// Face is one side of a multi-face entity.
type Face struct {
	Name     string
	Variants Variants
}

// Source describes the image variants an entity can display.
type Source struct {
	Kind Kind

	// Variants is used when Kind == KindSingle.
	Variants Variants

	// Faces and ActiveFace are used when Kind == KindMultiFace.
	// An empty or unknown ActiveFace selects the first face.
	Faces      []Face
	ActiveFace string
}

// Single builds a one-sided source.
func Single(v Variants) Source { return Source{Kind: KindSingle, Variants: v} }

// MultiFace builds a multi-face source showing active.
func MultiFace(active string, faces ...Face) Source {
	return Source{Kind: KindMultiFace, Faces: faces, ActiveFace: active}
}

// variants returns the variant set currently on display.
func (s Source) variants() Variants {
	switch s.Kind {
	case KindSingle:
		return s.Variants
	case KindMultiFace:
		if len(s.Faces) == 0 {
			return nil
		}
		for _, f := range s.Faces {
			if f.Name == s.ActiveFace {
				return f.Variants
			}
		}
		return s.Faces[0].Variants
	default:
		return nil
	}
}
