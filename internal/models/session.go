package models

import (
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
	"gopkg.in/yaml.v3"
)

type sessionForm uint8

const (
	sessionRecord sessionForm = iota
	// Older account files map a token straight to the user name.
	sessionLegacy
	sessionInvalid
)

// session has the fields of Session without its decoders.
type session Session

// UnmarshalYAML accepts both the record form and the legacy bare name.
func (s *Session) UnmarshalYAML(value *yaml.Node) error {
	switch {
	case value.Kind == yaml.MappingNode:
		var rec session
		if err := value.Decode(&rec); err != nil {
			return err
		}
		*s = Session(rec)
	case value.Kind == yaml.ScalarNode && value.ShortTag() == "!!str":
		*s = Session{Name: value.Value, form: sessionLegacy}
	default:
		*s = Session{form: sessionInvalid}
	}
	return nil
}

// DecodeMsgpack accepts both the record form and the legacy bare name.
func (s *Session) DecodeMsgpack(dec *msgpack.Decoder) error {
	c, err := dec.PeekCode()
	if err != nil {
		return err
	}
	switch {
	case msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32:
		var rec session
		if err := dec.Decode(&rec); err != nil {
			return err
		}
		*s = Session(rec)
	case msgpcode.IsString(c):
		name, err := dec.DecodeString()
		if err != nil {
			return err
		}
		*s = Session{Name: name, form: sessionLegacy}
	default:
		if err := dec.Skip(); err != nil {
			return err
		}
		*s = Session{form: sessionInvalid}
	}
	return nil
}
