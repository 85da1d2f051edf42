// Package fixtures creates test records through the real repositories.
//
// Factories fill every required field with unique defaults; option funcs
// override what a test cares about:
//
//	f := fixtures.New(tdb.DB)
//	organizer := f.CreateUser(t, fixtures.WithRole(model.UserRoleOrganizer))
//	wt := f.CreateType(t, f.CreateFamily(t))
//	ws := f.CreateWorkshop(t, wt, organizer, func(o *fixtures.WorkshopOpts) {
//	    o.Capacity = 1
//	})
package fixtures
