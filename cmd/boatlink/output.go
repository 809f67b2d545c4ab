package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Formatter renders command results.
type Formatter interface {
	Format(data any) string
}

// NewFormatter returns the formatter for "json", "yaml" or, by default, a
// table.
func NewFormatter(format string) Formatter {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return jsonFormatter{}
	case "yaml":
		return yamlFormatter{}
	default:
		return tableFormatter{}
	}
}

type tableFormatter struct{}

// Format prints structs as KEY: value lines and slices of structs as a table
// with upper-cased field names as headers.
func (tableFormatter) Format(data any) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice:
		if v.Len() == 0 {
			return "No results.\n"
		}
		if elem := reflect.Indirect(v.Index(0)); elem.Kind() == reflect.Struct {
			t := elem.Type()
			headers := make([]string, t.NumField())
			for i := range headers {
				headers[i] = strings.ToUpper(t.Field(i).Name)
			}
			fmt.Fprintln(w, strings.Join(headers, "\t"))
			for i := 0; i < v.Len(); i++ {
				row := reflect.Indirect(v.Index(i))
				vals := make([]string, row.NumField())
				for j := range vals {
					vals[j] = fmt.Sprintf("%v", row.Field(j).Interface())
				}
				fmt.Fprintln(w, strings.Join(vals, "\t"))
			}
		} else {
			for i := 0; i < v.Len(); i++ {
				fmt.Fprintln(w, v.Index(i).Interface())
			}
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			fmt.Fprintf(w, "%s:\t%v\n", t.Field(i).Name, v.Field(i).Interface())
		}
	default:
		fmt.Fprintln(w, data)
	}
	w.Flush()
	return buf.String()
}

type jsonFormatter struct{}

func (jsonFormatter) Format(data any) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("error formatting JSON: %v\n", err)
	}
	return string(b) + "\n"
}

type yamlFormatter struct{}

func (yamlFormatter) Format(data any) string {
	b, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Sprintf("error formatting YAML: %v\n", err)
	}
	return string(b)
}
