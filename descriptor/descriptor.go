package descriptor

import "strings"

// Descriptor classifies a single value slot: a parameter, a return, an array
// element, or an async-result payload. Immutable once built.
type Descriptor struct {
	Kind     Kind
	Elem     *Descriptor // element descriptor for compound kinds, else nil
	Nullable bool
	Optional bool // missing trailing argument tolerated
	Boxed    bool // value travels in its interface (object) representation
	Name     string
}

// Primitive returns a descriptor for a non-compound kind.
func Primitive(k Kind) *Descriptor {
	return &Descriptor{Kind: k, Name: k.String()}
}

// ArrayOf returns an Array descriptor with the given element.
func ArrayOf(elem *Descriptor) *Descriptor {
	return &Descriptor{Kind: KindArray, Elem: elem, Name: displayName(KindArray, elem)}
}

// ListOf returns a List descriptor with the given element.
func ListOf(elem *Descriptor) *Descriptor {
	return &Descriptor{Kind: KindList, Elem: elem, Name: displayName(KindList, elem)}
}

// AsyncOf returns an AsyncResult descriptor with the given payload element.
func AsyncOf(elem *Descriptor) *Descriptor {
	return &Descriptor{Kind: KindAsyncResult, Elem: elem, Name: displayName(KindAsyncResult, elem)}
}

// Object returns the erased opaque-object descriptor.
func Object() *Descriptor {
	return &Descriptor{Kind: KindObject, Nullable: true, Name: KindObject.String()}
}

// Boxed returns a copy of d marked for the boxed representation. Compound
// descriptors box their element instead.
func (d *Descriptor) AsBoxed() *Descriptor {
	if d.Boxed {
		return d
	}
	c := *d
	c.Boxed = true
	return &c
}

// String returns the display name.
func (d *Descriptor) String() string {
	if d == nil {
		return "<nil>"
	}
	if d.Name != "" {
		return d.Name
	}
	return displayName(d.Kind, d.Elem)
}

func displayName(k Kind, elem *Descriptor) string {
	if elem == nil {
		return k.String()
	}
	var b strings.Builder
	b.WriteString(k.String())
	b.WriteByte('<')
	b.WriteString(elem.String())
	b.WriteByte('>')
	return b.String()
}
