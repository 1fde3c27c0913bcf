/*
Package record defines the value types shared by every layer of dCol: the
Record itself, equality conditions, and the option structs that parameterise
the CRUD operations (sorting, projection, pagination, indexes, aggregation
pipelines).

The identity field of a Record is always named IDField ("id") on the public
surface. Providers translate their native identifiers to and from this field.

Conditions are plain equality matches. Values are compared by their canonical
form, so an int 3 matches a float64 3 decoded from JSON:

	cond := record.Condition{"tenantId": "abc", "age": 3}
	ok := record.Matches(record.Record{"tenantId": "abc", "age": 3.0}, cond) // true
*/
package record
