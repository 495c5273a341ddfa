package osimage

import "strings"

// Record is one osimage definition of an inventory.
type Record struct {
	// Name is the inventory key of the record. It is not part of the YAML body.
	Name string `yaml:"-" json:"name"`

	BasicAttributes  *BasicAttributes  `yaml:"basic_attributes,omitempty" json:"basic_attributes,omitempty"`
	PackageSelection *PackageSelection `yaml:"package_selection,omitempty" json:"package_selection,omitempty"`
	Scripts          *Scripts          `yaml:"scripts,omitempty" json:"scripts,omitempty"`

	ImageType   string `yaml:"imagetype,omitempty" json:"imagetype,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// BasicAttributes identifies the operating system of an image.
type BasicAttributes struct {
	OSDistro string `yaml:"osdistro" json:"osdistro"`
	OSName   string `yaml:"osname,omitempty" json:"osname,omitempty"`
	OSVers   string `yaml:"osvers,omitempty" json:"osvers,omitempty"`
	Arch     string `yaml:"arch,omitempty" json:"arch,omitempty"`
}

// PackageSelection lists the repositories and package lists of an image.
type PackageSelection struct {
	// PkgDir holds repository paths served by the repository host.
	PkgDir []string `yaml:"pkgdir,omitempty" json:"pkgdir,omitempty"`

	// PkgList holds paths of package-list files for the base packages.
	PkgList []string `yaml:"pkglist,omitempty" json:"pkglist,omitempty"`

	// OtherPkgDir is declared as a list but only its first element is used,
	// as the root of the repositories derived from OtherPkgList.
	OtherPkgDir []string `yaml:"otherpkgdir,omitempty" json:"otherpkgdir,omitempty"`

	// OtherPkgList holds paths of package-list files whose entries may be
	// qualified with a repository directory below OtherPkgDir.
	OtherPkgList []string `yaml:"otherpkglist,omitempty" json:"otherpkglist,omitempty"`
}

// OtherRepoRoot returns the root of the "other" repositories, or "" when unset.
func (p *PackageSelection) OtherRepoRoot() string {
	if p == nil || len(p.OtherPkgDir) == 0 {
		return ""
	}
	return p.OtherPkgDir[0]
}

// Scripts lists the post-install scripts of an image.
type Scripts struct {
	PostScripts     []string `yaml:"postscripts,omitempty" json:"postscripts,omitempty"`
	PostBootScripts []string `yaml:"postbootscripts,omitempty" json:"postbootscripts,omitempty"`
}

// Distro returns the osdistro attribute, or "" when basic attributes are missing.
func (r *Record) Distro() string {
	if r == nil || r.BasicAttributes == nil {
		return ""
	}
	return r.BasicAttributes.OSDistro
}

// IsRedHatFamily reports whether the image is a RHEL or CentOS image.
func (r *Record) IsRedHatFamily() bool {
	distro := r.Distro()
	return strings.HasPrefix(distro, "rhel") || strings.HasPrefix(distro, "centos")
}

// Inventory is a set of named records in document order.
type Inventory struct {
	names   []string
	records map[string]*Record
}

// NewInventory creates an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{records: make(map[string]*Record)}
}

// Add appends a record. It reports false if the name is already present.
func (inv *Inventory) Add(rec *Record) bool {
	if _, ok := inv.records[rec.Name]; ok {
		return false
	}
	inv.names = append(inv.names, rec.Name)
	inv.records[rec.Name] = rec
	return true
}

// Get looks up a record by name.
func (inv *Inventory) Get(name string) (*Record, bool) {
	rec, ok := inv.records[name]
	return rec, ok
}

// First returns the first record in document order.
func (inv *Inventory) First() (*Record, bool) {
	if len(inv.names) == 0 {
		return nil, false
	}
	return inv.records[inv.names[0]], true
}

// Names returns the record names in document order.
func (inv *Inventory) Names() []string {
	return append([]string{}, inv.names...)
}

// Len returns the number of records.
func (inv *Inventory) Len() int {
	return len(inv.names)
}
