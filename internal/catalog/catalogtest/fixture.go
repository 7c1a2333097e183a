package catalogtest

import (
	_ "embed"
	"encoding/json"
)

//go:embed testdata/deptperson.json
var deptPerson []byte

// DeptPerson returns a fresh copy of the two-schema fixture catalog: table
// dept_schema.dept and table person_schema.person, linked by the foreign key
// person_schema:person_dept_fkey, with visible-columns, visible-foreign-keys
// and source-definitions annotations referring to both.
func DeptPerson() map[string]any {
	var doc map[string]any
	if err := json.Unmarshal(deptPerson, &doc); err != nil {
		panic("catalogtest: invalid fixture: " + err.Error())
	}
	return doc
}

// DeptPersonJSON returns the raw fixture document
func DeptPersonJSON() []byte {
	return append([]byte(nil), deptPerson...)
}
