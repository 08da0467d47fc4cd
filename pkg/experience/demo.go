package experience

import "context"

// SeedDemo loads a small set of sample experiences. Gated behind
// experience.demo.enabled so production stores start empty.
func SeedDemo(ctx context.Context, repo Repository) error {
	samples := []*Experience{
		func() *Experience {
			e := New(TypeCode, "Paginate through a listing tool")
			e.Language = "python"
			e.Tags = []string{"demo", "pagination"}
			e.Artifact = &Artifact{
				Kind:        ArtifactCode,
				Language:    "python",
				Description: "Loop a listing tool until the cursor is exhausted.",
				Body: "def list_all(tools):\n" +
					"    items, cursor = [], None\n" +
					"    while True:\n" +
					"        page = json.loads(tools.call(\"list_items\", json.dumps({\"cursor\": cursor})))\n" +
					"        items.extend(page[\"items\"])\n" +
					"        cursor = page.get(\"next_cursor\")\n" +
					"        if not cursor:\n" +
					"            return items\n",
			}
			e.Metadata.Source = "demo"
			return e
		}(),
		func() *Experience {
			e := New(TypeReact, "Prefer search before answering factual questions")
			e.Content = "When the user asks about facts that may have changed recently, " +
				"call the search tool first and cite the result instead of answering from memory."
			e.Tags = []string{"demo"}
			e.FastIntent = &FastIntent{
				Condition: FastIntentMessagePrefix,
				Value:     "what is the latest",
			}
			e.Metadata.Source = "demo"
			return e
		}(),
		func() *Experience {
			e := New(TypeCommon, "Confirm before destructive operations")
			e.Content = "Tools that delete or overwrite data should be preceded by an explicit " +
				"confirmation from the user within the same turn."
			e.Tags = []string{"demo", "safety"}
			e.Metadata.Source = "demo"
			return e
		}(),
	}

	return repo.BatchSave(ctx, samples)
}
