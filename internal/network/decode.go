package network

import (
	"encoding/json"
	"reflect"
)

// emptyObject is decoded when a 2xx body does not decode on its own, so
// endpoints that answer with an empty body still satisfy types whose fields
// are all optional. Fields tagged `validate:"required"` make the fallback
// fail for that type.
var emptyObject = []byte("{}")

func (c *Client) decode(data []byte, v any, fallback bool) error {
	err := c.decodeStrict(data, v)
	if err == nil || !fallback {
		return err
	}

	// Reset anything the failed attempt partially filled in.
	rv := reflect.ValueOf(v).Elem()
	rv.Set(reflect.Zero(rv.Type()))

	if c.decodeStrict(emptyObject, v) != nil {
		return err
	}
	return nil
}

func (c *Client) decodeStrict(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	return c.validateStruct(v)
}

func (c *Client) validateStruct(v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	return c.validate.Struct(rv.Interface())
}
