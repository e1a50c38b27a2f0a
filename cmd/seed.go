package main

import (
	"sort"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/v2/bson"
	"gopkg.in/yaml.v3"
)

// seedFile is the parsed seed file
type seedFile struct {
	Collections map[string][]map[string]any `mapstructure:"collections"`
	Fake        map[string]int              `mapstructure:"fake"`
}

type demoUser struct {
	ID      bson.ObjectID `bson:"_id" fake:"skip"`
	Name    string        `bson:"name" fake:"{name}"`
	Email   string        `bson:"email" fake:"{email}"`
	Age     int           `bson:"age" fake:"{number:18,90}"`
	City    string        `bson:"city" fake:"{city}"`
	Balance float64       `bson:"balance" fake:"{price:0,5000}"`
}

type demoPost struct {
	ID     bson.ObjectID `bson:"_id" fake:"skip"`
	Title  string        `bson:"title" fake:"{sentence:4}"`
	Body   string        `bson:"body" fake:"{sentence:20}"`
	Views  int           `bson:"views" fake:"{number:0,10000}"`
	UserID bson.ObjectID `bson:"userId" fake:"skip"`
}

func readSeedFile(fs afero.Fs, name string) (*seedFile, error) {
	b, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, errors.Wrap(err, "reading seed file")
	}
	return parseSeed(b)
}

func parseSeed(b []byte) (*seedFile, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, errors.Wrap(err, "parsing seed file")
	}

	var sf seedFile
	dc := &mapstructure.DecoderConfig{
		Result:           &sf,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	}
	d, err := mapstructure.NewDecoder(dc)
	if err != nil {
		return nil, err
	}
	if err := d.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "decoding seed file")
	}

	for coll, n := range sf.Fake {
		if coll != "users" && coll != "posts" {
			return nil, errors.Errorf("seed file: no demo data generator for %q", coll)
		}
		if n < 0 {
			return nil, errors.Errorf("seed file: negative count for %q", coll)
		}
	}
	return &sf, nil
}

// documents returns the documents to insert per collection: the listed
// ones followed by the generated ones. Generated posts belong to the
// generated users.
func (sf *seedFile) documents(randomSeed int64) (map[string][]any, error) {
	out := make(map[string][]any)

	for coll, list := range sf.Collections {
		for _, d := range list {
			out[coll] = append(out[coll], bson.M(d))
		}
	}

	f := gofakeit.New(randomSeed)

	users := make([]demoUser, sf.Fake["users"])
	for i := range users {
		if err := f.Struct(&users[i]); err != nil {
			return nil, err
		}
		users[i].ID = bson.NewObjectID()
		out["users"] = append(out["users"], users[i])
	}

	for i := 0; i < sf.Fake["posts"]; i++ {
		var p demoPost
		if err := f.Struct(&p); err != nil {
			return nil, err
		}
		p.ID = bson.NewObjectID()
		if len(users) != 0 {
			p.UserID = users[f.Number(0, len(users)-1)].ID
		}
		out["posts"] = append(out["posts"], p)
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
