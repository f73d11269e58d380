// Package metadata holds the declarative object model that describes data,
// models, and storage to the execution core: schemas, parameter
// declarations, and the incarnation/copy bookkeeping that lets the storage
// layer pick a physical location for a logical data item. Nothing in this
// package executes anything; it is pure description, consumed by
// graph/resolve and storage.
package metadata

// BasicType is the scalar type vocabulary available to a FieldDefinition or
// ModelParameter.
type BasicType int

const (
	BasicTypeUnknown BasicType = iota
	BasicTypeBoolean
	BasicTypeInteger
	BasicTypeFloat
	BasicTypeString
	BasicTypeDecimal
	BasicTypeDate
	BasicTypeDateTime
)

func (t BasicType) String() string {
	switch t {
	case BasicTypeBoolean:
		return "BOOLEAN"
	case BasicTypeInteger:
		return "INTEGER"
	case BasicTypeFloat:
		return "FLOAT"
	case BasicTypeString:
		return "STRING"
	case BasicTypeDecimal:
		return "DECIMAL"
	case BasicTypeDate:
		return "DATE"
	case BasicTypeDateTime:
		return "DATETIME"
	default:
		return "UNKNOWN"
	}
}

// TypeDescriptor names a value's type; BasicType covers scalars, ArrayType
// recurses for a homogeneous array.
type TypeDescriptor struct {
	Basic     BasicType       `yaml:"basic" json:"basic"`
	ArrayType *TypeDescriptor `yaml:"arrayType,omitempty" json:"arrayType,omitempty"`
}

// FieldDefinition is one column of a TableDefinition.
type FieldDefinition struct {
	Name        string    `yaml:"name" json:"name"`
	FieldOrder  int       `yaml:"fieldOrder" json:"fieldOrder"`
	FieldType   BasicType `yaml:"fieldType" json:"fieldType"`
	Label       string    `yaml:"label,omitempty" json:"label,omitempty"`
	BusinessKey bool      `yaml:"businessKey,omitempty" json:"businessKey,omitempty"`
	NotNull     bool      `yaml:"notNull,omitempty" json:"notNull,omitempty"`
}

// TableDefinition is a schema: an ordered set of fields.
type TableDefinition struct {
	Fields []FieldDefinition `yaml:"fields" json:"fields"`
}

// FieldByName returns the field named name and whether it was found.
func (t *TableDefinition) FieldByName(name string) (FieldDefinition, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// ModelParameter declares one named, typed input to a model beyond its
// dataset inputs/outputs (e.g. a threshold, a currency code).
type ModelParameter struct {
	ParamType   TypeDescriptor `yaml:"paramType" json:"paramType"`
	Label       string         `yaml:"label,omitempty" json:"label,omitempty"`
	Default     any            `yaml:"default,omitempty" json:"default,omitempty"`
}

// ModelDefinition declares a single loadable, runnable model: where to load
// it from, its entry point, and its dataset/parameter contract.
type ModelDefinition struct {
	Repository string                    `yaml:"repository" json:"repository"`
	Path       string                    `yaml:"path,omitempty" json:"path,omitempty"`
	EntryPoint string                    `yaml:"entryPoint" json:"entryPoint"`
	Version    string                    `yaml:"version,omitempty" json:"version,omitempty"`
	Input      map[string]TableDefinition `yaml:"input" json:"input"`
	Output     map[string]TableDefinition `yaml:"output" json:"output"`
	Parameters map[string]ModelParameter  `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// DataDefinition describes one logical dataset: its schema and the name of
// the data item that backs its default (root, delta 0) part.
type DataDefinition struct {
	Schema   TableDefinition `yaml:"schema" json:"schema"`
	DataItem string          `yaml:"dataItem" json:"dataItem"`
}

// IncarnationStatus is the lifecycle state of one incarnation (version) of
// a data item.
type IncarnationStatus int

const (
	IncarnationUnknown IncarnationStatus = iota
	IncarnationAvailable
	IncarnationExpunged
)

// CopyStatus is the lifecycle state of one physical copy of an incarnation.
type CopyStatus int

const (
	CopyUnknown CopyStatus = iota
	CopyAvailable
	CopyExpunged
)

// StorageCopy is one physical replica of an incarnation: where it lives and
// how it is encoded.
type StorageCopy struct {
	CopyStatus    CopyStatus `yaml:"copyStatus" json:"copyStatus"`
	StorageKey    string     `yaml:"storageKey" json:"storageKey"`
	StoragePath   string     `yaml:"storagePath" json:"storagePath"`
	StorageFormat string     `yaml:"storageFormat" json:"storageFormat"`
}

// StorageIncarnation is one version of a data item: a point in time at
// which it was written, with one or more copies across storage locations.
type StorageIncarnation struct {
	IncarnationStatus IncarnationStatus `yaml:"incarnationStatus" json:"incarnationStatus"`
	Copies            []StorageCopy     `yaml:"copies" json:"copies"`
}

// StorageItem is the storage-side bookkeeping for one data item: every
// incarnation ever written for it, oldest first.
type StorageItem struct {
	Incarnations []StorageIncarnation `yaml:"incarnations" json:"incarnations"`
}

// StorageDefinition maps data item names to their storage bookkeeping. One
// StorageDefinition accompanies each DataDefinition referenced by a job.
type StorageDefinition struct {
	DataItems map[string]StorageItem `yaml:"dataItems" json:"dataItems"`
}

// ObjectType discriminates the kind of object an ObjectDefinition carries.
type ObjectType int

const (
	ObjectTypeUnknown ObjectType = iota
	ObjectTypeModel
	ObjectTypeData
	ObjectTypeStorage
)

// ObjectDefinition is the tagged union of declarable object kinds a
// JobConfig's Objects map may hold. Exactly one of Model/Data/Storage is
// non-nil, matching ObjectType.
type ObjectDefinition struct {
	ObjectType ObjectType         `yaml:"objectType" json:"objectType"`
	Model      *ModelDefinition   `yaml:"model,omitempty" json:"model,omitempty"`
	Data       *DataDefinition    `yaml:"data,omitempty" json:"data,omitempty"`
	Storage    *StorageDefinition `yaml:"storage,omitempty" json:"storage,omitempty"`
}
