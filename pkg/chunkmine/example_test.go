package chunkmine_test

import (
	"context"
	"fmt"
	"log"

	"github.com/chunkmine/chunkmine-go/pkg/chunkmine"
	"github.com/chunkmine/chunkmine-go/pkg/chunkmine/pattern"
)

func Example() {
	p, err := pattern.NewPattern(pattern.Definition{
		ID: "kv",
		Chunks: []pattern.ChunkDef{
			{Regex: `key=(?P<key>\w+)`, Fields: []string{"key"}},
			{Regex: `\s+value=(?P<value>\d+)`, Fields: []string{"value"},
				Clean: map[string]pattern.OpSpec{"value": {Op: "to_int"}}},
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	m, err := chunkmine.NewMiner(p)
	if err != nil {
		log.Fatal(err)
	}

	doc := chunkmine.NewDocument("key=a value=1\nnoise", "key=b value=2")
	report, err := m.Mine(context.Background(), "demo", doc)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(report.Records, "records from", report.Lines, "lines")

	table, err := m.Export("demo", true)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(table.Columns)
	for _, row := range table.Rows {
		fmt.Println(row...)
	}
	fmt.Println("live records:", m.Len())
	// Output:
	// 2 records from 3 lines
	// [start end key value]
	// 1 1 a 1
	// 3 3 b 2
	// live records: 0
}
