package store

// CollectionsTable is the table normalized collections are loaded into.
const CollectionsTable = "opensea_collections"

// CollectionColumns is the schema of CollectionsTable. Column names match
// catalog.NormalizedRecord.Row keys.
func CollectionColumns() []Column {
	return []Column{
		{Name: "id", DataType: "SERIAL", PrimaryKey: true},
		{Name: "collection", DataType: "VARCHAR(255)"},
		{Name: "name", DataType: "VARCHAR(255)"},
		{Name: "description", DataType: "TEXT", Nullable: true},
		{Name: "image_url", DataType: "TEXT", Nullable: true},
		{Name: "owner", DataType: "VARCHAR(255)", Nullable: true},
		{Name: "twitter_username", DataType: "VARCHAR(255)", Nullable: true},
		{Name: "contracts", DataType: "JSONB", Nullable: true},
		{Name: "created_at", DataType: "TIMESTAMP"},
	}
}
