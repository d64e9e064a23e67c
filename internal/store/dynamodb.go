package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"gallery-go/internal/gallery"
	"gallery-go/internal/model"
)

// Default DynamoDB table names.
const (
	DefaultItemsTable       = "gw.gallery.items"
	DefaultAlbumsTable      = "gw.gallery.albums"
	DefaultMembershipsTable = "gw.gallery.album.items"
)

// DynamoDBAPI is the subset of the DynamoDB client the store uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	dynamodb.ScanAPIClient
	dynamodb.QueryAPIClient
}

// DynamoDBTables names the three tables the store writes to.
type DynamoDBTables struct {
	Items       string // key: ETag
	Albums      string // key: AlbumName
	Memberships string // key: AlbumName, ETag
}

// DynamoDBStore implements gallery.ItemStore on DynamoDB. Items keep their
// Locations and Albums as maps of name -> true so that adding an entry is a
// single SET on a nested path.
type DynamoDBStore struct {
	client DynamoDBAPI
	tables DynamoDBTables
}

// NewDynamoDBStore creates a DynamoDB store. Empty table names fall back to
// the defaults.
func NewDynamoDBStore(client DynamoDBAPI, tables DynamoDBTables) *DynamoDBStore {
	if tables.Items == "" {
		tables.Items = DefaultItemsTable
	}
	if tables.Albums == "" {
		tables.Albums = DefaultAlbumsTable
	}
	if tables.Memberships == "" {
		tables.Memberships = DefaultMembershipsTable
	}
	return &DynamoDBStore{client: client, tables: tables}
}

// Item operations

func (s *DynamoDBStore) UpdateItem(ctx context.Context, update model.ItemUpdate) error {
	expr, names, values := itemUpdateExpression(update)

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.Items),
		Key:                       itemKey(update.ContentHash),
		ConditionExpression:       aws.String("attribute_exists(ETag)"),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return translateError("updating item", err)
	}
	return nil
}

// itemUpdateExpression builds the SET expression for an ItemUpdate.
// Capture time uses if_not_exists so an existing value is never replaced.
func itemUpdateExpression(update model.ItemUpdate) (string, map[string]string, map[string]types.AttributeValue) {
	expr := "SET ContentType = :ContentType"
	names := map[string]string{}
	values := map[string]types.AttributeValue{
		":ContentType": &types.AttributeValueMemberS{Value: update.ContentType},
	}

	if update.Location != "" || update.Album != "" {
		values[":true"] = &types.AttributeValueMemberBOOL{Value: true}
	}
	if update.Location != "" {
		expr += ", Locations.#locName = :true"
		names["#locName"] = update.Location
	}
	if update.Album != "" {
		expr += ", Albums.#albumName = :true"
		names["#albumName"] = update.Album
	}
	if update.CaptureTime != nil {
		expr += ", FileTime = if_not_exists(FileTime, :FileTime)"
		values[":FileTime"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(*update.CaptureTime, 10)}
	}

	if len(names) == 0 {
		names = nil
	}
	return expr, names, values
}

func (s *DynamoDBStore) InsertItem(ctx context.Context, contentHash string) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tables.Items),
		ConditionExpression: aws.String("attribute_not_exists(ETag)"),
		Item: map[string]types.AttributeValue{
			"ETag":      &types.AttributeValueMemberS{Value: contentHash},
			"Locations": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}},
			"Albums":    &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}},
		},
	})
	if err != nil {
		return translateError("inserting item", err)
	}
	return nil
}

func (s *DynamoDBStore) AddItemAlbum(ctx context.Context, contentHash, album string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.Items),
		Key:                       itemKey(contentHash),
		ConditionExpression:       aws.String("attribute_exists(ETag)"),
		UpdateExpression:          aws.String("SET Albums.#albumName = :true"),
		ExpressionAttributeNames:  map[string]string{"#albumName": album},
		ExpressionAttributeValues: map[string]types.AttributeValue{":true": &types.AttributeValueMemberBOOL{Value: true}},
	})
	if err != nil {
		return translateError("adding item album", err)
	}
	return nil
}

func (s *DynamoDBStore) GetItem(ctx context.Context, contentHash string) (*model.Item, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Items),
		Key:            itemKey(contentHash),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("finding item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil // Not found
	}

	item := &model.Item{
		ContentHash: contentHash,
		Locations:   mapNames(out.Item["Locations"]),
		Albums:      mapNames(out.Item["Albums"]),
	}
	if v, ok := out.Item["ContentType"].(*types.AttributeValueMemberS); ok {
		item.ContentType = v.Value
	}
	if v, ok := out.Item["FileTime"].(*types.AttributeValueMemberN); ok {
		seconds, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing FileTime of %s: %w", contentHash, err)
		}
		item.CaptureTime = &seconds
	}
	return item, nil
}

// Album operations

func (s *DynamoDBStore) PutMembership(ctx context.Context, album, contentHash string) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Memberships),
		Item: map[string]types.AttributeValue{
			"AlbumName": &types.AttributeValueMemberS{Value: album},
			"ETag":      &types.AttributeValueMemberS{Value: contentHash},
		},
	})
	if err != nil {
		return fmt.Errorf("adding album member: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) RegisterAlbum(ctx context.Context, album string) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Albums),
		Item: map[string]types.AttributeValue{
			"AlbumName": &types.AttributeValueMemberS{Value: album},
		},
	})
	if err != nil {
		return fmt.Errorf("registering album: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) ListAlbums(ctx context.Context) ([]string, error) {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:            aws.String(s.tables.Albums),
		ProjectionExpression: aws.String("AlbumName"),
	})

	albums := []string{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing albums: %w", err)
		}
		for _, row := range page.Items {
			if v, ok := row["AlbumName"].(*types.AttributeValueMemberS); ok {
				albums = append(albums, v.Value)
			}
		}
	}
	slices.Sort(albums)
	return albums, nil
}

func (s *DynamoDBStore) ListAlbumMembers(ctx context.Context, album string) ([]string, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tables.Memberships),
		KeyConditionExpression:    aws.String("AlbumName = :album"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":album": &types.AttributeValueMemberS{Value: album}},
		ProjectionExpression:      aws.String("ETag"),
	})

	members := []string{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing album members: %w", err)
		}
		for _, row := range page.Items {
			if v, ok := row["ETag"].(*types.AttributeValueMemberS); ok {
				members = append(members, v.Value)
			}
		}
	}
	slices.Sort(members)
	return members, nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *DynamoDBStore) Close() error {
	return nil
}

func itemKey(contentHash string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"ETag": &types.AttributeValueMemberS{Value: contentHash},
	}
}

// mapNames returns the sorted keys of a map attribute.
func mapNames(av types.AttributeValue) []string {
	m, ok := av.(*types.AttributeValueMemberM)
	if !ok {
		return []string{}
	}
	return slices.Sorted(maps.Keys(m.Value))
}

// translateError maps a failed condition check to gallery.ErrConditionFailed.
func translateError(op string, err error) error {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("%s: %w", op, gallery.ErrConditionFailed)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Compile-time check that DynamoDBStore implements gallery.ItemStore
var _ gallery.ItemStore = (*DynamoDBStore)(nil)
