package handles

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"vodcaiji/models"
)

func newConfigRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewConfigHandler(db)
	r := gin.New()
	r.GET("/configs", h.GetConfigs)
	r.POST("/configs", h.CreateConfig)
	r.PUT("/configs", h.UpdateConfig)
	r.DELETE("/configs", h.DeleteConfig)
	r.POST("/configs/reset", h.ResetCheckpoint)
	return r
}

func TestConfigHandler_CreateAndList(t *testing.T) {
	db := openTestDB(t)
	r := newConfigRouter(db)

	w := doRequest(r, http.MethodPost, "/configs",
		`{"name":"魔都资源","come_key":"mt","base_url":"https://mt.example.com","type_id_translate":{"2":5}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var cfg models.CaijiConfig
	require.NoError(t, db.Where("come_key = ?", "mt").First(&cfg).Error)
	assert.True(t, cfg.Enabled)
	assert.JSONEq(t, `{"2":5}`, cfg.TypeIDTranslate)

	w = doRequest(r, http.MethodGet, "/configs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.CaijiConfig
	require.NoError(t, json.Unmarshal(decode(t, w.Body.Bytes()).Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "mt", list[0].ComeKey)

	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodPost, "/configs", `{"name":"x"}`).Code)
}

// TestConfigHandler_UpdateKeepsCheckpoint 更新配置不覆盖采集进度
func TestConfigHandler_UpdateKeepsCheckpoint(t *testing.T) {
	db := openTestDB(t)
	cfg := models.CaijiConfig{Name: "mt", ComeKey: "mt", BaseURL: "https://old", Enabled: true, CaijiStateInfo: `{"current_page":4}`}
	require.NoError(t, db.Create(&cfg).Error)
	r := newConfigRouter(db)

	w := doRequest(r, http.MethodPut, "/configs?id=1",
		`{"name":"mt2","come_key":"mt","base_url":"https://new","enabled":false}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.CaijiConfig
	require.NoError(t, db.First(&got, cfg.ID).Error)
	assert.Equal(t, "https://new", got.BaseURL)
	assert.False(t, got.Enabled)
	assert.Equal(t, `{"current_page":4}`, got.CaijiStateInfo)

	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodPut, "/configs?id=99", `{"name":"a","come_key":"a","base_url":"b"}`).Code)
}

func TestConfigHandler_ResetAndDelete(t *testing.T) {
	db := openTestDB(t)
	cfg := models.CaijiConfig{Name: "mt", ComeKey: "mt", BaseURL: "https://mt", Enabled: true, CaijiStateInfo: `{"current_page":4}`}
	require.NoError(t, db.Create(&cfg).Error)
	r := newConfigRouter(db)

	require.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/configs/reset?id=1", "").Code)
	var got models.CaijiConfig
	require.NoError(t, db.First(&got, cfg.ID).Error)
	assert.Empty(t, got.CaijiStateInfo)

	require.Equal(t, http.StatusOK, doRequest(r, http.MethodDelete, "/configs?id=1", "").Code)
	var count int64
	db.Model(&models.CaijiConfig{}).Count(&count)
	assert.Zero(t, count)

	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodDelete, "/configs", "").Code)
}
