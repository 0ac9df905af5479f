package main

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/poiesic/screener/core"
)

var datasets = []string{"us_ofac", "eu_fsf", "gb_hmt", "un_sc"}

var (
	birthFrom = time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC)
	birthTo   = time.Date(2000, 12, 31, 0, 0, 0, 0, time.UTC)
)

// seedNamespace scopes generated entity IDs.
var seedNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://screener.poiesic.com/seed"))

type generator struct {
	faker *gofakeit.Faker

	// names replaces generated family names and company stems when set.
	names []string
}

func newGenerator(seed uint64, names iter.Seq[string]) *generator {
	g := &generator{faker: gofakeit.New(seed)}
	for name := range names {
		if name = strings.TrimSpace(name); name != "" {
			g.names = append(g.names, name)
		}
	}
	return g
}

func (g *generator) familyName() string {
	if len(g.names) > 0 {
		return g.faker.RandomString(g.names)
	}
	return g.faker.LastName()
}

func (g *generator) companyName() string {
	if len(g.names) > 0 {
		return g.faker.RandomString(g.names) + " " + g.faker.CompanySuffix()
	}
	return g.faker.Company()
}

func (g *generator) country() string {
	return strings.ToLower(g.faker.CountryAbr())
}

// Records yields n synthetic entities, roughly two people for every company.
func (g *generator) Records(n int) iter.Seq[*core.Entity] {
	return func(yield func(*core.Entity) bool) {
		for i := range n {
			var e *core.Entity
			if g.faker.Number(0, 2) == 2 {
				e = g.company(i)
			} else {
				e = g.person(i)
			}
			if !yield(e) {
				return
			}
		}
	}
}

func (g *generator) id(i int) string {
	return "seed-" + uuid.NewSHA1(seedNamespace, []byte(fmt.Sprintf("%d", i))).String()
}

func (g *generator) lists() []string {
	first := g.faker.RandomString(datasets)
	second := g.faker.RandomString(datasets)
	if first == second {
		return []string{first}
	}
	return []string{first, second}
}

func (g *generator) person(i int) *core.Entity {
	given, family := g.faker.FirstName(), g.familyName()
	e := core.NewEntity(g.id(i), "Person")
	e.Add("name", given+" "+family)
	e.Add("firstName", given)
	e.Add("lastName", family)
	if g.faker.Bool() {
		e.Add("alias", family+", "+given)
	}
	e.Add("birthDate", g.faker.DateRange(birthFrom, birthTo).Format(time.DateOnly))
	e.Add("nationality", g.country())
	if g.faker.Number(0, 3) == 0 {
		e.Add("passportNumber", strings.ToUpper(g.faker.Letter())+g.faker.Numerify("########"))
	}
	e.Datasets = g.lists()
	e.Target = true
	return e
}

func (g *generator) company(i int) *core.Entity {
	e := core.NewEntity(g.id(i), "Company")
	e.Add("name", g.companyName())
	e.Add("jurisdiction", g.country())
	e.Add("registrationNumber", g.faker.Numerify("##########"))
	if g.faker.Number(0, 2) == 0 {
		e.Add("phone", "+7 495 "+g.faker.Numerify("### ####"))
	}
	e.Datasets = g.lists()
	e.Target = true
	return e
}

// writeRecords encodes records as JSON lines and returns how many were written.
func writeRecords(w io.Writer, records iter.Seq[*core.Entity]) (int, error) {
	enc := json.NewEncoder(w)
	n := 0
	for r := range records {
		if err := enc.Encode(r); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
