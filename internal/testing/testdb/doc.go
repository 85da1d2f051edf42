// Package testdb opens throwaway SurrealDB databases for integration tests.
//
// Every TestDB lives in its own namespace with all migrations applied and
// is removed when the test finishes:
//
//	func TestSomething(t *testing.T) {
//	    tdb := testdb.New(t)
//	    repo := repository.NewWorkshopRepository(tdb.DB)
//	    ...
//	}
//
// When no server answers, New skips the test. Set TEST_DB_REQUIRED=1 in CI
// to turn that into a failure.
//
// Connection settings come from TEST_DB_HOST, TEST_DB_PORT, TEST_DB_USER
// and TEST_DB_PASSWORD (defaults: localhost, 8000, root, root).
package testdb
