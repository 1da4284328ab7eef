package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/colors"
	"github.com/gin-gonic/gin"
	"github.com/klass-lk/postboard/internal/model"
	"github.com/klass-lk/postboard/internal/repository"
	"github.com/stretchr/testify/assert"
)

type DBSeeder interface {
	Seed(document string, data *godog.Table) error
}

// TestSuite drives the HTTP API from feature files. Values captured with
// "is stored as" can be referenced in later paths as {key}.
type TestSuite struct {
	T           *testing.T
	Router      *gin.Engine
	Resp        *http.Response
	RespBody    []byte
	Storage     map[string]string
	RequestBody []byte
	BaseURL     string
	DbSeeders   map[string]DBSeeder
	// Reset runs before every scenario, typically to empty the store.
	Reset func()
}

type TestLogger struct {
	T *testing.T
}

func (tl *TestLogger) Write(p []byte) (n int, err error) {
	if tl.T != nil {
		tl.T.Logf("%s", p)
	}
	return len(p), nil
}

func NewTestSuite(t *testing.T, router *gin.Engine) *TestSuite {
	return &TestSuite{
		T:         t,
		Router:    router,
		Storage:   map[string]string{},
		DbSeeders: map[string]DBSeeder{},
	}
}

func (ts *TestSuite) RegisterDBSeeder(document string, seeder DBSeeder) {
	ts.DbSeeders[document] = seeder
}

func (ts *TestSuite) InitializeTestSuite(ctx *godog.TestSuiteContext) {
	ctx.BeforeSuite(func() {
		ts.Storage = make(map[string]string)
	})
}

func (ts *TestSuite) InitializeScenario(ctx *godog.ScenarioContext) {
	ctx.BeforeScenario(func(sc *godog.Scenario) {
		ts.Resp = nil
		ts.RespBody = nil
		ts.RequestBody = nil
		if ts.Reset != nil {
			ts.Reset()
		}
	})

	ctx.Step(`^document "([^"]*)" has the following items$`, ts.documentHasTheFollowingItems)
	ctx.Step(`^I send a (POST|PUT) request to "([^"]*)" with body$`, ts.iSendARequestWithBody)
	ctx.Step(`^I send a (GET|DELETE) request to "([^"]*)"$`, ts.iSendARequestTo)
	ctx.Step(`^I upload "([^"]*)" of (\d+) bytes to "([^"]*)" with fields$`, ts.iUploadWithFields)
	ctx.Step(`^the response status should be (\d+)$`, ts.theResponseStatusShouldBe)
	ctx.Step(`^the response "([^"]*)" field is stored as "([^"]*)"$`, ts.theResponseFieldIsStoredAs)
	ctx.Step(`^the response should contain an item with$`, ts.theResponseShouldContainAnItemWith)
	ctx.Step(`^the response should be a list of (\d+) items?$`, ts.theResponseShouldBeAListOf)
	ctx.Step(`^item (\d+) of the response should have "([^"]*)" equal to "([^"]*)"$`, ts.itemShouldHave)
	ctx.Step(`^the response "([^"]*)" field should end with "([^"]*)"$`, ts.theResponseFieldShouldEndWith)
	ctx.Step(`^the response should not have a "([^"]*)" field$`, ts.theResponseShouldNotHaveField)
}

func (ts *TestSuite) expand(path string) string {
	for key, value := range ts.Storage {
		path = strings.ReplaceAll(path, "{"+key+"}", value)
	}
	return path
}

func (ts *TestSuite) documentHasTheFollowingItems(document string, data *godog.Table) error {
	seeder, ok := ts.DbSeeders[document]
	if !ok {
		return fmt.Errorf("no seeder registered for document %s", document)
	}
	return seeder.Seed(document, data)
}

func (ts *TestSuite) do(req *http.Request) error {
	var err error
	if ts.BaseURL != "" {
		ts.Resp, err = http.DefaultClient.Do(req)
	} else {
		w := httptest.NewRecorder()
		ts.Router.ServeHTTP(w, req)
		ts.Resp = w.Result()
	}
	if err != nil {
		return err
	}
	defer ts.Resp.Body.Close()
	ts.RespBody, err = io.ReadAll(ts.Resp.Body)
	return err
}

func (ts *TestSuite) iSendARequestWithBody(method, path string, body *godog.Table) error {
	var err error
	ts.RequestBody, err = ts.parseDataTableToJSON(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(method, ts.BaseURL+ts.expand(path), bytes.NewBuffer(ts.RequestBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return ts.do(req)
}

func (ts *TestSuite) iSendARequestTo(method, path string) error {
	req, err := http.NewRequest(method, ts.BaseURL+ts.expand(path), nil)
	if err != nil {
		return err
	}
	return ts.do(req)
}

func (ts *TestSuite) iUploadWithFields(fileName string, size int, path string, fields *godog.Table) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	values, err := ts.tableRow(fields)
	if err != nil {
		return err
	}
	for key, value := range values {
		if err := writer.WriteField(key, value); err != nil {
			return err
		}
	}
	part, err := writer.CreateFormFile("image", fileName)
	if err != nil {
		return err
	}
	if _, err := part.Write(bytes.Repeat([]byte{0xAB}, size)); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, ts.BaseURL+ts.expand(path), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return ts.do(req)
}

func (ts *TestSuite) theResponseStatusShouldBe(status int) error {
	if ts.Resp.StatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, ts.Resp.StatusCode, ts.RespBody)
	}
	return nil
}

func (ts *TestSuite) responseObject() (map[string]interface{}, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(ts.RespBody, &data); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	return data, nil
}

func (ts *TestSuite) theResponseFieldIsStoredAs(field, key string) error {
	data, err := ts.responseObject()
	if err != nil {
		return err
	}
	if val, ok := data[field]; ok {
		ts.Storage[key] = fmt.Sprintf("%v", val)
		return nil
	}
	return fmt.Errorf("field %s not found in response", field)
}

func (ts *TestSuite) theResponseShouldContainAnItemWith(body *godog.Table) error {
	expected, err := ts.tableRow(body)
	if err != nil {
		return err
	}
	actual, err := ts.responseObject()
	if err != nil {
		return err
	}

	for key, expectedValue := range expected {
		actualValue, ok := actual[key]
		if !ok {
			return fmt.Errorf("field %s not found in response", key)
		}
		if !assert.Equal(ts.T, ts.expand(expectedValue), fmt.Sprintf("%v", actualValue)) {
			return fmt.Errorf("field %s: expected %q, got %v", key, expectedValue, actualValue)
		}
	}
	return nil
}

func (ts *TestSuite) responseList() ([]map[string]interface{}, error) {
	var items []map[string]interface{}
	if err := json.Unmarshal(ts.RespBody, &items); err != nil {
		return nil, fmt.Errorf("response is not a JSON array: %w", err)
	}
	return items, nil
}

func (ts *TestSuite) theResponseShouldBeAListOf(count int) error {
	items, err := ts.responseList()
	if err != nil {
		return err
	}
	if len(items) != count {
		return fmt.Errorf("expected %d items, got %d", count, len(items))
	}
	return nil
}

func (ts *TestSuite) itemShouldHave(index int, field, expected string) error {
	items, err := ts.responseList()
	if err != nil {
		return err
	}
	if index < 1 || index > len(items) {
		return fmt.Errorf("item %d out of range, response has %d items", index, len(items))
	}
	actual := fmt.Sprintf("%v", items[index-1][field])
	if actual != ts.expand(expected) {
		return fmt.Errorf("item %d field %s: expected %q, got %q", index, field, expected, actual)
	}
	return nil
}

func (ts *TestSuite) theResponseFieldShouldEndWith(field, suffix string) error {
	data, err := ts.responseObject()
	if err != nil {
		return err
	}
	value, _ := data[field].(string)
	if !strings.HasSuffix(value, suffix) {
		return fmt.Errorf("field %s = %q does not end with %q", field, value, suffix)
	}
	return nil
}

func (ts *TestSuite) theResponseShouldNotHaveField(field string) error {
	data, err := ts.responseObject()
	if err != nil {
		return err
	}
	if _, ok := data[field]; ok {
		return fmt.Errorf("field %s should be absent, got %v", field, data[field])
	}
	return nil
}

// tableRow reads a two-row table: headers, then values.
func (ts *TestSuite) tableRow(body *godog.Table) (map[string]string, error) {
	if len(body.Rows) < 2 {
		return nil, fmt.Errorf("table must have at least two rows")
	}
	headers := body.Rows[0].Cells
	data := make(map[string]string)
	for j, cell := range body.Rows[1].Cells {
		data[headers[j].Value] = cell.Value
	}
	return data, nil
}

func (ts *TestSuite) parseDataTableToJSON(body *godog.Table) ([]byte, error) {
	row, err := ts.tableRow(body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(row)
}

// Run executes the feature files under paths.
func (ts *TestSuite) Run(paths ...string) int {
	opts := godog.Options{
		Format:    "pretty",
		Output:    colors.Colored(&TestLogger{T: ts.T}),
		Paths:     paths,
		Strict:    true,
		Randomize: 0,
	}

	return godog.TestSuite{
		Name:                 "postboard",
		TestSuiteInitializer: ts.InitializeTestSuite,
		ScenarioInitializer:  ts.InitializeScenario,
		Options:              &opts,
	}.Run()
}

// RepositorySeeder fills posts from a table through a PostRepository, so seeded
// rows get ids and timestamps like any other insert. Rows are inserted in order.
type RepositorySeeder struct {
	Repo repository.PostRepository
}

func NewRepositorySeeder(repo repository.PostRepository) *RepositorySeeder {
	return &RepositorySeeder{Repo: repo}
}

func (s *RepositorySeeder) Seed(document string, data *godog.Table) error {
	if document != repository.PostCollection {
		return fmt.Errorf("no constructor registered for document type: %s", document)
	}
	if len(data.Rows) < 2 {
		return nil
	}

	headers := data.Rows[0].Cells
	for i := 1; i < len(data.Rows); i++ {
		var post model.Post
		val := reflect.ValueOf(&post).Elem()
		typ := val.Type()

		for j, cell := range data.Rows[i].Cells {
			fieldName := headers[j].Value
			set := false
			for k := 0; k < typ.NumField(); k++ {
				jsonName := strings.SplitN(typ.Field(k).Tag.Get("json"), ",", 2)[0]
				if jsonName != fieldName {
					continue
				}
				field := val.Field(k)
				switch field.Kind() {
				case reflect.String:
					field.SetString(cell.Value)
				case reflect.Ptr:
					if cell.Value != "" {
						v := cell.Value
						field.Set(reflect.ValueOf(&v))
					}
				default:
					return fmt.Errorf("unsupported field type for %s: %s", fieldName, field.Kind())
				}
				set = true
				break
			}
			if !set {
				return fmt.Errorf("could not set field %s for document %s", fieldName, document)
			}
		}

		if _, err := s.Repo.Insert(context.Background(), post); err != nil {
			return err
		}
	}
	return nil
}
