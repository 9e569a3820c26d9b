package gitlog

const mergeLog = `commit 1111111111111111111111111111111111111111
Merge: aaaaaaa bbbbbbb
Author: Jane Doe <jane@example.com>
Date:   Mon Jan 1 10:00:00 2024 +0100

    Merged in feature/widget (pull request #12)

    Add widget

    Approved-by: Jane Doe <jane@example.com>
    Approved-by: Bob Smith <bob@example.com>

commit 2222222222222222222222222222222222222222
Author: Alice Wong <alice@example.com>
Date:   Tue Jan 2 11:00:00 2024 +0000

    Fix login redirect (#13)

    Approved-by: Bob Smith <bob@example.com>
    Approved-by: Bob Smith <bob@example.com>
    Approved-by: Carol King <carol@example.com>

commit 3333333333333333333333333333333333333333
Merge: ccccccc ddddddd
Author: Bob Smith <bob@example.com>
Date:   Wed Jan 3 12:00:00 2024 +0000

    Merged in hotfix (pull request #14)

    Patch release

    Approved-by: Bob Smith <bob@example.com>

commit 4444444444444444444444444444444444444444
Merge: eeeeeee fffffff
Author: Dan Brown <dan@example.com>
Date:   Thu Jan 4 09:30:00 2024 +0000

    Merge branch 'main' into feature

`

const commitLog = `commit aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa
Author: Jane Doe <jane@example.com>
Date:   Mon Jan 1 10:00:00 2024 +0100

    Add widget

 app/widget.py  | 4 ++++
 docs/widget.md | 6 ++++++
 README         | 0
 3 files changed, 10 insertions(+)

commit bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb
Author: Bob Smith <bob@example.com>
Date:   Tue Jan 2 11:00:00 2024 -0500

    Refactor parser

    Split the tokenizer out of the parser.

 src/parser.py    | 12 ++++++------
 src/tokenizer.py | 30 ++++++++++++++++++++++++++++++
 2 files changed, 36 insertions(+), 6 deletions(-)

commit cccccccccccccccccccccccccccccccccccccccc
   
commit dddddddddddddddddddddddddddddddddddddddd
Date:   Wed Jan 3 12:00:00 2024 +0000

    Orphan change

 a.py | 1 +
 1 file changed, 1 insertion(+)

commit eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee
Author: Carol King <carol@example.com>
Date:   Thu Jan 4 09:30:00 2024 +0000

    Squashed feature (#20)

    Approved-by: Bob Smith <bob@example.com>

 lib/feature.py | 3 +++
 1 file changed, 3 insertions(+)

commit ffffffffffffffffffffffffffffffffffffffff
Author: Dan Brown <dan@example.com>
Date:   Fri Jan 5 16:45:00 2024 +0000

    Remove stale docs

 docs/old.md | 8 --------
 1 file changed, 8 deletions(-)
`
