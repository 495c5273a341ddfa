// Package osimage loads osimage inventories.
//
// An inventory is a YAML mapping from image name to image definition. The
// mapping may sit at the top level of the document ("flat") or below an
// "osimage" key ("wrapped"). Inventories can be read from a single file or
// from a directory of YAML files.
package osimage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"

	"github.com/danieljhkim/osdeploy/internal/fsops"
)

// WrapperKey is the optional top level key an inventory can be nested under.
const WrapperKey = "osimage"

var (
	// ErrNotFound indicates an inventory file, directory or image does not exist.
	ErrNotFound = errors.New("not found")

	// ErrParse indicates an inventory could not be parsed.
	ErrParse = errors.New("invalid inventory")
)

// Loader reads inventories from a filesystem.
type Loader struct {
	fs  fsops.FS
	log logr.Logger
}

// NewLoader creates a Loader reading files through fs.
func NewLoader(fs fsops.FS, log logr.Logger) *Loader {
	return &Loader{fs: fs, log: log}
}

// Load reads the inventory file at source and returns the record called name.
// An empty name selects the first record in document order.
func (l *Loader) Load(source, name string) (*Record, error) {
	inv, err := l.LoadFile(source)
	if err != nil {
		return nil, err
	}
	return Select(inv, name, source)
}

// LoadDir reads every inventory file of dir and returns the record called name.
// An empty name selects the first record of the first file.
func (l *Loader) LoadDir(dir, name string) (*Record, error) {
	inv, err := l.LoadDirectory(dir)
	if err != nil {
		return nil, err
	}
	return Select(inv, name, dir)
}

// LoadFile reads a whole inventory file.
func (l *Loader) LoadFile(source string) (*Inventory, error) {
	exists, err := l.fs.Exists(source)
	if err != nil {
		return nil, fmt.Errorf("failed to check inventory %s: %w", source, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s does not exist", ErrNotFound, source)
	}

	data, err := l.fs.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory %s: %w", source, err)
	}

	inv := NewInventory()
	if err := parseInto(inv, data); err != nil {
		return nil, parseError(source, err)
	}

	l.log.V(1).Info("loaded inventory", "source", source, "images", inv.Len())
	return inv, nil
}

// LoadDirectory reads every *.yaml and *.yml file of dir, in lexical order,
// into one inventory. An image defined in more than one file is an error.
func (l *Loader) LoadDirectory(dir string) (*Inventory, error) {
	isDir, err := l.fs.IsDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to check inventory directory %s: %w", dir, err)
	}
	if !isDir {
		return nil, fmt.Errorf("%w: inventory directory %s does not exist", ErrNotFound, dir)
	}

	files, err := l.fs.ListFiles(dir, ".yaml", ".yml")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no inventory files in %s", ErrNotFound, dir)
	}

	inv := NewInventory()
	for _, file := range files {
		data, err := l.fs.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read inventory %s: %w", file, err)
		}
		if err := parseInto(inv, data); err != nil {
			return nil, parseError(file, err)
		}
		l.log.V(2).Info("loaded inventory file", "source", file)
	}

	l.log.V(1).Info("loaded inventory directory", "dir", dir, "files", len(files), "images", inv.Len())
	return inv, nil
}

// Select returns the record called name, or the first record when name is empty.
// origin names the inventory in error messages.
func Select(inv *Inventory, name, origin string) (*Record, error) {
	if name == "" {
		rec, ok := inv.First()
		if !ok {
			return nil, fmt.Errorf("%w: %s contains no osimage", ErrNotFound, origin)
		}
		return rec, nil
	}

	rec, ok := inv.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: osimage %q is not defined in %s (available: %s)",
			ErrNotFound, name, origin, strings.Join(inv.Names(), ", "))
	}
	return rec, nil
}

func parseError(source string, err error) error {
	return fmt.Errorf("%w: failed to load file %q, please validate the file with 'yamllint %s' (for yaml format): %v",
		ErrParse, source, source, err)
}

// parseInto decodes one inventory document and appends its records to inv.
// A yaml.Node tree is used so records keep their document order.
func parseInto(inv *Inventory, data []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return errors.New("document is empty")
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode || len(root.Content) == 0 {
		return errors.New("document is not a non-empty mapping")
	}

	if wrapped := lookup(root, WrapperKey); wrapped != nil {
		root = resolve(wrapped)
		if root.Kind != yaml.MappingNode || len(root.Content) == 0 {
			return fmt.Errorf("%q is not a non-empty mapping", WrapperKey)
		}
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], resolve(root.Content[i+1])
		if key.Kind != yaml.ScalarNode || key.Value == "" {
			return fmt.Errorf("line %d: osimage name must be a non-empty string", key.Line)
		}
		if value.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: osimage %q is not a mapping", value.Line, key.Value)
		}

		rec := &Record{}
		if err := value.Decode(rec); err != nil {
			return fmt.Errorf("osimage %q: %w", key.Value, err)
		}
		rec.Name = key.Value

		// A section written with no body is still present.
		if rec.PackageSelection == nil && lookup(value, "package_selection") != nil {
			rec.PackageSelection = &PackageSelection{}
		}
		if rec.Scripts == nil && lookup(value, "scripts") != nil {
			rec.Scripts = &Scripts{}
		}

		if !inv.Add(rec) {
			return fmt.Errorf("line %d: osimage %q is defined more than once", key.Line, key.Value)
		}
	}

	return nil
}

// lookup returns the value node stored under key in a mapping node, with
// aliases resolved.
func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if k := mapping.Content[i]; k.Kind == yaml.ScalarNode && k.Value == key {
			return resolve(mapping.Content[i+1])
		}
	}
	return nil
}

// resolve follows alias nodes to the node they refer to.
func resolve(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}
