// Package veloq is the query-compilation core of an object-relational
// layer. It turns expression-tree representations of queries into
// executable, parameterized plans: evaluatable sub-expressions are
// extracted into runtime parameters, domain function calls are rewritten
// into backend-native expression nodes, the normalized tree is parsed
// into a backend-agnostic query model, and the compiled delegate is
// cached by structural fingerprint so interchangeable queries compile
// exactly once.
//
// This package holds the collaborator interfaces (Model, Backend,
// Cursor), the per-execution QueryContext, configuration and the error
// taxonomy. The pipeline itself lives in the compiler package:
//
//	model := &veloq.StaticModel{Name: "shop"}
//	c, err := compiler.New(model, memory.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	q := querylanguage.Source("users").
//		Where(querylanguage.FieldGT("age", 30))
//	user, err := compiler.Execute[map[string]any](c, q)
//
// Sub-packages:
//
//   - querylanguage: the expression tree model
//   - plan: the backend-agnostic query model and parser
//   - compiler: extraction, transformation, caching, orchestration
//   - dialect, dialect/sql: the SQL execution backend
//   - memory: an in-memory execution backend
package veloq
