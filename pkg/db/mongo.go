package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stock-news/pkg/domain"
)

// MongoStore implements Store on MongoDB with "stocks" and "news" collections.
type MongoStore struct {
	mongoClient *mongo.Client
	database    *mongo.Database
	stocks      *mongo.Collection
	news        *mongo.Collection

	// connectErr is the client construction error, reported by Connect.
	connectErr error
}

// NewMongoStore creates a store. Connection errors surface from Connect.
func NewMongoStore(connectionString, databaseName string) *MongoStore {
	clientOptions := options.Client().ApplyURI(connectionString)
	mongoClient, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		return &MongoStore{connectErr: fmt.Errorf("create mongo client: %w", err)}
	}

	database := mongoClient.Database(databaseName)
	return &MongoStore{
		mongoClient: mongoClient,
		database:    database,
		stocks:      database.Collection(stocksTable),
		news:        database.Collection(newsTable),
	}
}

// Connect pings the server and ensures the unique url index exists.
func (s *MongoStore) Connect(ctx context.Context) error {
	if s.connectErr != nil {
		return s.connectErr
	}
	if s.mongoClient == nil {
		return fmt.Errorf("mongo client not initialized")
	}
	if err := s.mongoClient.Ping(ctx, nil); err != nil {
		return err
	}
	return s.EnsureIndexes(ctx)
}

// EnsureIndexes creates the unique index on news.url and a ticker index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.news.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "url", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "published_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create news indexes: %w", err)
	}
	_, err = s.stocks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "ticker", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create stock index: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (s *MongoStore) Close(ctx context.Context) error {
	if s.mongoClient == nil {
		return nil
	}
	return s.mongoClient.Disconnect(ctx)
}

func (s *MongoStore) ListStocks(ctx context.Context) ([]domain.Stock, error) {
	cursor, err := s.stocks.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "ticker", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}
	var stocks []domain.Stock
	if err := cursor.All(ctx, &stocks); err != nil {
		return nil, fmt.Errorf("decode stocks: %w", err)
	}
	return stocks, nil
}

func (s *MongoStore) FirstStock(ctx context.Context) (*domain.Stock, error) {
	var stock domain.Stock
	err := s.stocks.FindOne(ctx, bson.M{}).Decode(&stock)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("first stock: %w", err)
	}
	return &stock, nil
}

func (s *MongoStore) GetStockByTicker(ctx context.Context, ticker string) (*domain.Stock, error) {
	var stock domain.Stock
	err := s.stocks.FindOne(ctx, bson.M{"ticker": strings.ToUpper(ticker)}).Decode(&stock)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stock %s: %w", ticker, err)
	}
	return &stock, nil
}

func (s *MongoStore) ExistsNewsByURL(ctx context.Context, url string) (bool, error) {
	n, err := s.news.CountDocuments(ctx, bson.M{"url": url}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check news url: %w", err)
	}
	return n > 0, nil
}

func (s *MongoStore) InsertNews(ctx context.Context, record *domain.NewsRecord) (bool, error) {
	_, err := s.news.InsertOne(ctx, record)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert news: %w", err)
	}
	return true, nil
}

func mongoNewsFilter(filter NewsFilter) bson.M {
	query := bson.M{}
	if filter.MinScore > 0 {
		query["impact_score"] = bson.M{"$gte": filter.MinScore}
	}
	if filter.StockID != "" {
		query["stock_id"] = filter.StockID
	}
	return query
}

func (s *MongoStore) ListNews(ctx context.Context, filter NewsFilter) ([]domain.NewsRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "published_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := s.news.Find(ctx, mongoNewsFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	var records []domain.NewsRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode news: %w", err)
	}
	if err := s.attachStocks(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

// attachStocks fills Stock on each record with one lookup for the page.
func (s *MongoStore) attachStocks(ctx context.Context, records []domain.NewsRecord) error {
	ids := make([]string, 0, len(records))
	seen := make(map[string]bool)
	for _, r := range records {
		if r.StockID != "" && !seen[r.StockID] {
			seen[r.StockID] = true
			ids = append(ids, r.StockID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	cursor, err := s.stocks.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return fmt.Errorf("load stocks: %w", err)
	}
	var stocks []domain.Stock
	if err := cursor.All(ctx, &stocks); err != nil {
		return fmt.Errorf("decode stocks: %w", err)
	}
	byID := make(map[string]*domain.Stock, len(stocks))
	for i := range stocks {
		byID[stocks[i].ID] = &stocks[i]
	}
	for i := range records {
		records[i].Stock = byID[records[i].StockID]
	}
	return nil
}

func (s *MongoStore) GetNews(ctx context.Context, id string) (*domain.NewsRecord, error) {
	var record domain.NewsRecord
	err := s.news.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get news %s: %w", id, err)
	}
	records := []domain.NewsRecord{record}
	if err := s.attachStocks(ctx, records); err != nil {
		return nil, err
	}
	return &records[0], nil
}

func (s *MongoStore) UpdateNewsAnalysis(ctx context.Context, id, summary string, impactScore int) error {
	res, err := s.news.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"summary":      summary,
		"impact_score": impactScore,
	}})
	if err != nil {
		return fmt.Errorf("update news %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
