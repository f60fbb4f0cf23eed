// Package pipeline 提供训练数据清洗
package pipeline

import (
	"fmt"
	"sync"
	"time"

	"aqicast/airdata"

	"go.uber.org/zap"
)

// CleaningRule 清洗规则
type CleaningRule interface {
	Apply(*airdata.Record) (*airdata.Record, error)
	Name() string
}

// QualityIssue 质量问题
type QualityIssue struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	RecordAt  time.Time `json:"record_at"`
}

// CleaningStats 清洗统计
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Filled         int64            `json:"filled"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// DataCleaner 数据清洗器
type DataCleaner struct {
	rules []CleaningRule

	issues     []QualityIssue
	issuesLock sync.RWMutex

	stats     CleaningStats
	statsLock sync.RWMutex
}

// NewDataCleaner 创建带默认规则的数据清洗器
func NewDataCleaner() *DataCleaner {
	cleaner := &DataCleaner{
		rules: make([]CleaningRule, 0),
		stats: CleaningStats{
			Issues: make(map[string]int64),
		},
	}

	cleaner.AddRule(NewLabelRule())
	cleaner.AddRule(NewRangeRule())
	cleaner.AddRule(NewTimestampRule())
	cleaner.AddRule(NewDuplicateRule())

	return cleaner
}

// AddRule 添加清洗规则
func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	zap.S().Infof("Added cleaning rule: %s", rule.Name())
}

// Clean 逐条应用所有规则，返回通过的记录和质量问题
func (dc *DataCleaner) Clean(records []airdata.Record) ([]airdata.Record, []QualityIssue) {
	var cleaned []airdata.Record
	var issues []QualityIssue

	dc.statsLock.Lock()
	defer dc.statsLock.Unlock()

	for i := range records {
		dc.stats.TotalProcessed++
		record := &records[i]

		var recordIssues []QualityIssue
		for _, rule := range dc.rules {
			result, err := rule.Apply(record)
			if err != nil {
				recordIssues = append(recordIssues, QualityIssue{
					Type:      rule.Name(),
					Message:   err.Error(),
					Timestamp: time.Now(),
					RecordAt:  record.Timestamp,
				})
				dc.stats.Issues[rule.Name()]++
				continue
			}
			if result != nil {
				record = result
			}
		}

		if len(recordIssues) > 0 {
			dc.stats.Rejected++
			issues = append(issues, recordIssues...)
			dc.issuesLock.Lock()
			dc.issues = append(dc.issues, recordIssues...)
			dc.issuesLock.Unlock()
		} else {
			dc.stats.Passed++
			cleaned = append(cleaned, *record)
		}
	}

	dc.stats.LastClean = time.Now()
	return cleaned, issues
}

// FillMissing 用前向填充补全传感器和环境读数中的哨兵值
// 标签缺失的记录不在此处理，由 LabelRule 拒绝
func (dc *DataCleaner) FillMissing(records []airdata.Record) []airdata.Record {
	filled := int64(0)
	for i := 1; i < len(records); i++ {
		prev := records[i-1]
		curr := &records[i]

		fields := []struct {
			curr *float64
			prev float64
		}{
			{&curr.SensorCO, prev.SensorCO},
			{&curr.SensorNMHC, prev.SensorNMHC},
			{&curr.SensorNOx, prev.SensorNOx},
			{&curr.SensorNO2, prev.SensorNO2},
			{&curr.SensorO3, prev.SensorO3},
			{&curr.Temperature, prev.Temperature},
			{&curr.RelativeHumidity, prev.RelativeHumidity},
			{&curr.AbsoluteHumidity, prev.AbsoluteHumidity},
		}
		for _, f := range fields {
			if *f.curr == airdata.Missing && f.prev != airdata.Missing {
				*f.curr = f.prev
				filled++
			}
		}
	}

	dc.statsLock.Lock()
	dc.stats.Filled += filled
	dc.statsLock.Unlock()

	return records
}

// GetStats 获取统计信息
func (dc *DataCleaner) GetStats() CleaningStats {
	dc.statsLock.RLock()
	defer dc.statsLock.RUnlock()
	return dc.stats
}

// GetIssues 获取最近的问题列表
func (dc *DataCleaner) GetIssues(limit int) []QualityIssue {
	dc.issuesLock.RLock()
	defer dc.issuesLock.RUnlock()

	if limit <= 0 || limit > len(dc.issues) {
		limit = len(dc.issues)
	}
	issues := make([]QualityIssue, limit)
	copy(issues, dc.issues[len(dc.issues)-limit:])
	return issues
}

// ============ 清洗规则实现 ============

// LabelRule 拒绝标签缺失或为负的记录
type LabelRule struct{}

func NewLabelRule() *LabelRule { return &LabelRule{} }

func (r *LabelRule) Name() string { return "label_validation" }

func (r *LabelRule) Apply(record *airdata.Record) (*airdata.Record, error) {
	if record.AQI == airdata.Missing {
		return nil, fmt.Errorf("AQI label missing at %s", record.Timestamp.Format(time.RFC3339))
	}
	if record.AQI < 0 {
		return nil, fmt.Errorf("AQI label %.2f is negative", record.AQI)
	}
	return record, nil
}

// RangeRule 校验读数的物理范围
// 哨兵值（-200）在前向填充后仍残留时按越界拒绝
type RangeRule struct {
	MinTemp float64
	MaxTemp float64
	MaxRH   float64
}

func NewRangeRule() *RangeRule {
	return &RangeRule{
		MinTemp: -50,
		MaxTemp: 60,
		MaxRH:   100,
	}
}

func (r *RangeRule) Name() string { return "range_validation" }

func (r *RangeRule) Apply(record *airdata.Record) (*airdata.Record, error) {
	sensors := map[string]float64{
		"sensor_co":   record.SensorCO,
		"sensor_nmhc": record.SensorNMHC,
		"sensor_nox":  record.SensorNOx,
		"sensor_no2":  record.SensorNO2,
		"sensor_o3":   record.SensorO3,
	}
	for name, v := range sensors {
		if v < 0 {
			return nil, fmt.Errorf("%s reading %.2f is negative", name, v)
		}
	}
	if record.Temperature < r.MinTemp || record.Temperature > r.MaxTemp {
		return nil, fmt.Errorf("temperature %.2f out of range [%.1f, %.1f]", record.Temperature, r.MinTemp, r.MaxTemp)
	}
	if record.RelativeHumidity < 0 || record.RelativeHumidity > r.MaxRH {
		return nil, fmt.Errorf("relative humidity %.2f out of range [0, %.1f]", record.RelativeHumidity, r.MaxRH)
	}
	if record.AbsoluteHumidity < 0 {
		return nil, fmt.Errorf("absolute humidity %.2f is negative", record.AbsoluteHumidity)
	}
	return record, nil
}

// TimestampRule 时间戳验证规则
type TimestampRule struct {
	MaxFuture time.Duration
}

func NewTimestampRule() *TimestampRule {
	return &TimestampRule{MaxFuture: 5 * time.Minute}
}

func (r *TimestampRule) Name() string { return "timestamp_validation" }

func (r *TimestampRule) Apply(record *airdata.Record) (*airdata.Record, error) {
	if record.Timestamp.IsZero() {
		return nil, fmt.Errorf("timestamp is zero")
	}
	if record.Timestamp.After(time.Now().Add(r.MaxFuture)) {
		return nil, fmt.Errorf("timestamp %s is in the future", record.Timestamp.Format(time.RFC3339))
	}
	return record, nil
}

// DuplicateRule 重复检测规则
type DuplicateRule struct {
	seen map[int64]struct{}
	mu   sync.Mutex
}

func NewDuplicateRule() *DuplicateRule {
	return &DuplicateRule{seen: make(map[int64]struct{})}
}

func (r *DuplicateRule) Name() string { return "duplicate_detection" }

func (r *DuplicateRule) Apply(record *airdata.Record) (*airdata.Record, error) {
	key := record.Timestamp.Unix()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.seen[key]; exists {
		return nil, fmt.Errorf("duplicate record at %s", record.Timestamp.Format(time.RFC3339))
	}
	r.seen[key] = struct{}{}
	return record, nil
}
