// Package schemacue compiles model declarations written in CUE into
// schema.Models values ready for registration.
//
// The expected document shape:
//
//	models: {
//		user: {
//			key: "id"
//			fields: {
//				id:   {type: "string", uuid: true}
//				name: {type: "string", default: "anonymous"}
//				age:  "number"
//			}
//			relations: {
//				partner: {to: "user", kind: "oneOf", nullable: true}
//				posts:   {to: "post", kind: "manyOf"}
//			}
//		}
//	}
//
// A field is either a bare type name ("string", "number", "bool") or a
// struct with a type, an optional constant default, and an optional uuid
// flag for generated string keys.
package schemacue

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/mirage/schema"
	"github.com/roach88/mirage/value"
)

// CompileError is a schema compilation failure with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileString compiles CUE source text into a model set.
func CompileString(src string) (schema.Models, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	return Compile(v)
}

// LoadFile reads and compiles one CUE file.
func LoadFile(path string) (schema.Models, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load models: %w", err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(path))
	return Compile(v)
}

// Compile parses a CUE value holding a "models" struct into a model set.
// Uses the CUE SDK's Go API directly, not a CLI subprocess.
func Compile(v cue.Value) (schema.Models, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	modelsVal := v.LookupPath(cue.ParsePath("models"))
	if !modelsVal.Exists() {
		return nil, &CompileError{
			Field:   "models",
			Message: "models struct is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	models := make(schema.Models)
	for iter.Next() {
		name := iter.Label()
		model, err := compileModel(name, iter.Value())
		if err != nil {
			return nil, err
		}
		models[name] = model
	}

	if len(models) == 0 {
		return nil, &CompileError{
			Field:   "models",
			Message: "at least one model is required",
			Pos:     modelsVal.Pos(),
		}
	}
	return models, nil
}

func compileModel(name string, v cue.Value) (schema.Model, error) {
	keyVal := v.LookupPath(cue.ParsePath("key"))
	if !keyVal.Exists() {
		return nil, &CompileError{
			Field:   name + ".key",
			Message: "key is required",
			Pos:     v.Pos(),
		}
	}
	keyProp, err := keyVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	model := make(schema.Model)

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   name + ".fields",
			Message: "fields struct is required",
			Pos:     v.Pos(),
		}
	}
	fieldIter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for fieldIter.Next() {
		fieldName := fieldIter.Label()
		scalar, err := compileField(name+"."+fieldName, fieldIter.Value())
		if err != nil {
			return nil, err
		}
		if fieldName == keyProp {
			model[fieldName] = schema.PrimaryKey(scalar)
		} else {
			model[fieldName] = scalar
		}
	}

	if _, declared := model[keyProp]; !declared {
		return nil, &CompileError{
			Field:   name + ".key",
			Message: fmt.Sprintf("key %q is not declared in fields", keyProp),
			Pos:     keyVal.Pos(),
		}
	}

	relationsVal := v.LookupPath(cue.ParsePath("relations"))
	if relationsVal.Exists() {
		relIter, err := relationsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for relIter.Next() {
			relName := relIter.Label()
			rel, err := compileRelation(name+"."+relName, relIter.Value())
			if err != nil {
				return nil, err
			}
			if _, taken := model[relName]; taken {
				return nil, &CompileError{
					Field:   name + "." + relName,
					Message: "declared both as a field and a relation",
					Pos:     relIter.Value().Pos(),
				}
			}
			model[relName] = rel
		}
	}

	return model, nil
}

func compileField(path string, v cue.Value) (schema.Scalar, error) {
	// Bare form: the field value is the type name itself.
	if v.Kind() == cue.StringKind {
		typeName, err := v.String()
		if err != nil {
			return schema.Scalar{}, formatCUEError(err)
		}
		typ, err := scalarType(path, typeName, v.Pos())
		if err != nil {
			return schema.Scalar{}, err
		}
		return schema.Scalar{Type: typ}, nil
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return schema.Scalar{}, &CompileError{
			Field:   path,
			Message: "field must be a type name or a struct with a type",
			Pos:     v.Pos(),
		}
	}
	typeName, err := typeVal.String()
	if err != nil {
		return schema.Scalar{}, formatCUEError(err)
	}
	typ, err := scalarType(path, typeName, typeVal.Pos())
	if err != nil {
		return schema.Scalar{}, err
	}

	uuidVal := v.LookupPath(cue.ParsePath("uuid"))
	if uuidVal.Exists() {
		generate, err := uuidVal.Bool()
		if err != nil {
			return schema.Scalar{}, formatCUEError(err)
		}
		if generate {
			if typ != value.TypeString {
				return schema.Scalar{}, &CompileError{
					Field:   path,
					Message: "uuid generation requires a string field",
					Pos:     uuidVal.Pos(),
				}
			}
			return schema.UUID(), nil
		}
	}

	defaultVal := v.LookupPath(cue.ParsePath("default"))
	if !defaultVal.Exists() {
		return schema.Scalar{Type: typ}, nil
	}
	return compileDefault(path, typ, defaultVal)
}

func compileDefault(path string, typ value.Type, v cue.Value) (schema.Scalar, error) {
	switch typ {
	case value.TypeString:
		s, err := v.String()
		if err != nil {
			return schema.Scalar{}, formatCUEError(err)
		}
		return schema.String(s), nil
	case value.TypeNumber:
		f, err := v.Float64()
		if err != nil {
			return schema.Scalar{}, formatCUEError(err)
		}
		return schema.Number(f), nil
	case value.TypeBool:
		b, err := v.Bool()
		if err != nil {
			return schema.Scalar{}, formatCUEError(err)
		}
		return schema.Bool(b), nil
	default:
		return schema.Scalar{}, &CompileError{
			Field:   path,
			Message: fmt.Sprintf("default not supported for type %s", typ),
			Pos:     v.Pos(),
		}
	}
}

func compileRelation(path string, v cue.Value) (schema.Relation, error) {
	toVal := v.LookupPath(cue.ParsePath("to"))
	if !toVal.Exists() {
		return schema.Relation{}, &CompileError{
			Field:   path,
			Message: "relation requires a target model (to)",
			Pos:     v.Pos(),
		}
	}
	target, err := toVal.String()
	if err != nil {
		return schema.Relation{}, formatCUEError(err)
	}

	kind := "oneOf"
	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if kindVal.Exists() {
		kind, err = kindVal.String()
		if err != nil {
			return schema.Relation{}, formatCUEError(err)
		}
	}

	var rel schema.Relation
	switch kind {
	case "oneOf":
		rel = schema.OneOf(target)
	case "manyOf":
		rel = schema.ManyOf(target)
	default:
		return schema.Relation{}, &CompileError{
			Field:   path,
			Message: fmt.Sprintf("unknown relation kind %q (want oneOf or manyOf)", kind),
			Pos:     kindVal.Pos(),
		}
	}

	nullableVal := v.LookupPath(cue.ParsePath("nullable"))
	if nullableVal.Exists() {
		nullable, err := nullableVal.Bool()
		if err != nil {
			return schema.Relation{}, formatCUEError(err)
		}
		if nullable {
			rel = schema.Nullable(rel)
		}
	}
	return rel, nil
}

func scalarType(path, name string, pos token.Pos) (value.Type, error) {
	switch name {
	case "string":
		return value.TypeString, nil
	case "number":
		return value.TypeNumber, nil
	case "bool":
		return value.TypeBool, nil
	default:
		return "", &CompileError{
			Field:   path,
			Message: fmt.Sprintf("unsupported field type %q (want string, number, or bool)", name),
			Pos:     pos,
		}
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
