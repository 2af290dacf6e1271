package editor

import (
	"errors"
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/shaderbench/internal/uniform"
)

// SheetEntry is one user uniform in the uniform sheet. A missing type is
// float.
type SheetEntry struct {
	Name  string       `yaml:"name"`
	Type  uniform.Type `yaml:"type"`
	Value any          `yaml:"value"`
}

// ParseSheet decodes a uniform sheet: a YAML list of entries. An empty
// document is an empty sheet.
func ParseSheet(data []byte) ([]SheetEntry, error) {
	var entries []SheetEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("uniform sheet: %w", err)
	}
	return entries, nil
}

// MarshalSheet writes the user uniforms of reg as a sheet.
func MarshalSheet(reg *uniform.Registry) ([]byte, error) {
	entries := []SheetEntry{}
	for _, u := range reg.Mutable() {
		entries = append(entries, SheetEntry{Name: u.Name(), Type: u.Type(), Value: u.Raw()})
	}
	return yaml.Marshal(entries)
}

// SyncResult counts what SyncSheet changed.
type SyncResult struct {
	Added   int
	Removed int
	Renamed int
	Retyped int
	Updated int

	// Named is set when entries without a name were given one; the sheet
	// should be written back.
	Named bool
}

// Changed reports whether the registry was modified.
func (r SyncResult) Changed() bool {
	return r.Added+r.Removed+r.Renamed+r.Retyped+r.Updated > 0 || r.Named
}

// SyncSheet makes the user uniforms of reg match the sheet, entry by entry in
// order. Built-ins are untouched. Values that do not convert are kept on the
// uniform and returned joined.
func SyncSheet(reg *uniform.Registry, entries []SheetEntry) (SyncResult, error) {
	var (
		res     SyncResult
		unnamed []*uniform.Uniform
		errs    []error
	)
	user := reg.Mutable()

	for i, e := range entries {
		var u *uniform.Uniform
		switch {
		case i >= len(user):
			added, err := reg.Add(e.Name, e.Type, e.Value)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			u = added
			res.Added++
			if e.Name == "" {
				res.Named = true
			}

		case user[i].Type() != e.Type:
			replaced, err := reg.Replace(user[i], e.Name, e.Type, e.Value)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			u = replaced
			res.Retyped++
			if e.Name == "" {
				unnamed = append(unnamed, u)
			}

		default:
			u = user[i]
			if u.Name() != e.Name {
				_ = u.Rename(e.Name)
				res.Renamed++
				if e.Name == "" {
					unnamed = append(unnamed, u)
				}
			}
			if !reflect.DeepEqual(u.Raw(), e.Value) {
				_ = u.SetRaw(e.Value)
				res.Updated++
			}
		}
		if u.Err() != nil {
			errs = append(errs, fmt.Errorf("uniform %s: %w", u.Name(), u.Err()))
		}
	}

	for _, u := range user[min(len(entries), len(user)):] {
		if err := reg.Remove(u); err != nil {
			errs = append(errs, err)
			continue
		}
		res.Removed++
	}

	for _, u := range unnamed {
		_ = u.Rename(reg.FindName())
		res.Named = true
	}

	return res, errors.Join(errs...)
}
