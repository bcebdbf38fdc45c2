package s3

import (
	"io"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/catalogkit/mdk"
	"github.com/catalogkit/mdk/test"
)

type fakeS3 struct {
	s3iface.S3API
	objects map[string]string
	pages   [][]string
}

func (f *fakeS3) ListObjectsV2Pages(in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool) error {
	for i, keys := range f.pages {
		out := &s3.ListObjectsV2Output{}
		for _, k := range keys {
			if strings.HasPrefix(k, aws.StringValue(in.Prefix)) {
				out.Contents = append(out.Contents, &s3.Object{Key: aws.String(k)})
			}
		}
		if !fn(out, i == len(f.pages)-1) {
			break
		}
	}
	return nil
}

func (f *fakeS3) GetObject(in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
	body := f.objects[aws.StringValue(in.Key)]
	return &s3.GetObjectOutput{
		Body:          ioutil.NopCloser(strings.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func TestRawSource(t *testing.T) {
	fake := &fakeS3{
		objects: map[string]string{"mce/b.json": "b", "mce/a.json": "a", "mce/c.txt": "c"},
		pages:   [][]string{{"mce/b.json", "mce/"}, {"mce/a.json", "mce/c.txt", "other/d.json"}},
	}
	rs, err := NewRawSource(OptSrcBucket("md"), OptSrcPrefix("mce/"), OptSrcSuffix(".json"), OptSrcClient(fake))
	test.ErrNil(t, err, "NewRawSource")
	test.MustBe(t, "md", rs.Bucket())

	var names, bodies []string
	for {
		r, err := rs.NextReader()
		if err == io.EOF {
			break
		}
		test.ErrNil(t, err, "NextReader")
		data, err := ioutil.ReadAll(r)
		test.ErrNil(t, err, "reading object")
		test.ErrNil(t, r.Close(), "closing object")
		names = append(names, r.Name())
		bodies = append(bodies, string(data))
		test.MustBe(t, "md", r.Meta()["bucket"])
	}
	test.MustBe(t, []string{"mce/a.json", "mce/b.json"}, names)
	test.MustBe(t, []string{"a", "b"}, bodies)
}

func TestNewSource(t *testing.T) {
	urn := mdk.MakeDatasetURN("s3", "bucket/key", "PROD")
	data, err := mdk.MarshalMetadata(mdk.NewProposal(urn, &mdk.Status{}))
	test.ErrNil(t, err, "marshal")
	fake := &fakeS3{
		objects: map[string]string{"one.json": "[" + string(data) + "]", "two.json": string(data)},
		pages:   [][]string{{"one.json", "two.json"}},
	}
	src, err := NewSource(OptSrcBucket("md"), OptSrcClient(fake))
	test.ErrNil(t, err, "NewSource")
	wus := test.Collect(t, mdk.AutoWorkUnit(src))
	test.MustBe(t, 2, len(wus))
}

func TestNewRawSourceNeedsBucket(t *testing.T) {
	if _, err := NewRawSource(OptSrcRegion("us-east-1")); err == nil {
		t.Fatal("expected an error without a bucket")
	}
}
