package storage

import (
	"fmt"

	"github.com/olivere/elastic/v7"
)

func ElasticClient(address string, port int) (*elastic.Client, error) {
	uri := fmt.Sprintf("http://%s:%d", address, port)
	client, err := elastic.NewClient(
		elastic.SetURL(uri),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	)
	if err != nil {
		return nil, fmt.Errorf("error connecting to elasticsearch: %s", err.Error())
	}
	return client, nil
}
