package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/jing2uo/yf2db/database"
	"github.com/jing2uo/yf2db/model"
)

func (s *Service) PresentTickers(ctx context.Context) ([]string, error) {
	return s.repo.GetPresentTickers(ctx)
}

func (s *Service) Security(ctx context.Context, ticker string) (*model.Security, error) {
	return s.repo.QuerySecurity(ctx, ticker)
}

func (s *Service) Daily(ctx context.Context, ticker string, start, end *time.Time) ([]model.DailyBar, error) {
	return s.repo.QueryDaily(ctx, ticker, start, end)
}

func (s *Service) Minutely(ctx context.Context, ticker string, start, end *time.Time) ([]model.MinuteBar, error) {
	return s.repo.QueryMinutely(ctx, ticker, start, end)
}

func (s *Service) Actions(ctx context.Context, ticker string, start, end *time.Time) ([]model.Action, error) {
	return s.repo.QueryActions(ctx, ticker, start, end)
}

func (s *Service) Coverage(ctx context.Context) ([]model.Coverage, error) {
	return s.repo.QueryCoverage(ctx)
}

// Table 读取整张表, 返回对应模型的切片
func (s *Service) Table(ctx context.Context, name string) (interface{}, error) {
	meta, ok := model.LookupTable(name)
	if !ok {
		return nil, fmt.Errorf("unknown table: %s", name)
	}

	switch meta {
	case model.TableSecurity:
		return queryAll[model.Security](ctx, s.repo, meta)
	case model.TableExchange:
		return queryAll[model.Exchange](ctx, s.repo, meta)
	case model.TablePriceDaily:
		return queryAll[model.DailyBar](ctx, s.repo, meta)
	case model.TablePriceMinutely:
		return queryAll[model.MinuteBar](ctx, s.repo, meta)
	case model.TableActions:
		return queryAll[model.Action](ctx, s.repo, meta)
	default:
		return nil, fmt.Errorf("table %s has no row model", name)
	}
}

func queryAll[T any](ctx context.Context, repo database.DataRepository, meta *model.TableMeta) ([]T, error) {
	var rows []T
	if err := repo.Query(ctx, meta.TableName, nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", meta.TableName, err)
	}
	return rows, nil
}

// DropAll 删除全部视图与表
func (s *Service) DropAll() error {
	return s.repo.DropSchema()
}
