// Smoke exercises the full stack in process against the in-memory backend:
// seed, login, CRUD through the facades, tenant isolation, logout.
package main

import (
	"context"
	"fmt"
	"log"

	"stayadmin.org/internal/auth"
	"stayadmin.org/internal/resource"
	"stayadmin.org/internal/store"
	"stayadmin.org/internal/store/memory"
)

func main() {
	log.SetFlags(0)
	ctx := context.Background()

	dispatcher := store.NewDispatcher(memory.New())

	// Seed a tenant and its admin directly through the dispatcher.
	company, err := dispatcher.Create(ctx, "companies", map[string]any{
		"name": "Acme Stays", "is_active": true,
	})
	must(err)
	companyID := company["id"].(string)

	hash, err := auth.HashPassword("hunter2hunter2")
	must(err)
	admin, err := dispatcher.Create(ctx, "users", map[string]any{
		"email": "admin@acme.test", "name": "Admin", "role": "admin",
		"company_id": companyID, "is_active": true,
		auth.PasswordHashField: hash,
	})
	must(err)

	manager, err := auth.NewManager(
		auth.NewDocIdentityStore(dispatcher),
		auth.NewMemorySessionStore(),
	)
	must(err)

	login, err := manager.Login(ctx, "admin@acme.test", "hunter2hunter2")
	must(err)
	fmt.Printf("logged in as %s (%s)\n", login.Identity.Email, login.Identity.Role)

	identity, err := manager.Validate(ctx, login.Token)
	must(err)

	services := resource.NewServices(dispatcher, nil)

	prop, err := services.Properties.Create(ctx, identity, map[string]any{
		"name": "Seaside Flat", "type": "apartment", "status": "active",
	})
	must(err)
	fmt.Printf("created property %s\n", prop["id"])

	num, err := services.Numbers.Create(ctx, identity, map[string]any{
		"number": "+1 (555) 010-7700", "property_id": prop["id"],
	})
	must(err)
	fmt.Printf("created number %s -> %s\n", num["id"], num["number"])

	res, err := services.Properties.List(ctx, identity, store.Pagination{}, store.Sort{}, nil)
	must(err)
	fmt.Printf("tenant sees %d propert(y/ies)\n", res.Total)

	// A second tenant must see nothing of the first.
	other, err := dispatcher.Create(ctx, "companies", map[string]any{
		"name": "Rival Rooms", "is_active": true,
	})
	must(err)
	outsider := auth.Identity{
		ID: admin["id"].(string) + "x", Role: auth.RoleAdmin,
		Active: true, CompanyID: other["id"].(string),
	}
	if _, err := services.Properties.GetByID(ctx, outsider, prop["id"].(string)); err == nil {
		log.Fatal("tenant isolation failed: outsider read a foreign property")
	}
	fmt.Println("tenant isolation holds")

	must(manager.Logout(ctx, login.Token))
	if _, err := manager.Validate(ctx, login.Token); err == nil {
		log.Fatal("session survived logout")
	}
	fmt.Println("logout revokes the session")
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
