// Package config parses the CLI/environment-level options this
// program is configured with into a plain Go struct, following the
// same struct-tag-driven shape as rclone's configstruct.Set(m, opt):
// each field's default lives in its own `config:"name" default:"..."`
// tag next to the field it fills, rather than scattered through flag
// definitions.
package config

import (
	"fmt"
	"reflect"
	"strconv"
)

// Options is every tunable this program's CLI exposes.
type Options struct {
	Device      string `config:"device" default:"/dev/ttyUSB0"`
	Baud        int    `config:"baud" default:"0"`
	TimeoutDs   int    `config:"timeout" default:"50"`
	Mountpoint  string `config:"mountpoint" default:""`
	Uid         uint32 `config:"uid" default:"0"`
	Gid         uint32 `config:"gid" default:"0"`
	Umask       uint32 `config:"umask" default:"0022"`
	Charset     string `config:"charset" default:"iso8859-1"`
	HideTelecom bool   `config:"hide-telecom" default:"true"`
	Debug       bool   `config:"debug" default:"false"`
}

// Defaults builds an Options populated entirely from each field's
// `default` tag, the starting point CLI flag parsing then overrides.
func Defaults() (Options, error) {
	var o Options
	if err := applyDefaults(&o); err != nil {
		return Options{}, err
	}
	return o, nil
}

// applyDefaults walks opt's fields by reflection and sets each one
// from its `default` tag, skipping fields that have none.
func applyDefaults(opt any) error {
	v := reflect.ValueOf(opt)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: Defaults needs a pointer to a struct")
	}
	v = v.Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, ok := field.Tag.Lookup("default")
		if !ok {
			continue
		}
		if err := setField(v.Field(i), tag); err != nil {
			return fmt.Errorf("config: field %s: %w", field.Name, err)
		}
	}
	return nil
}

func setField(fv reflect.Value, raw string) error {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 0, 64)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 0, 64)
		if err != nil {
			return err
		}
		fv.SetUint(n)
	default:
		return fmt.Errorf("unsupported field kind %s", fv.Kind())
	}
	return nil
}
